package gateway

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orderentry/obgate/pkg/market"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zap.NewNop().Sugar()
	mkt := market.NewMarket(log)
	loop := market.NewLoop()
	t.Cleanup(loop.Close)
	creds := &Credentials{DefaultUser: "testuser", DefaultSecret: "testpass"}
	return NewServer(mkt, loop, creds, log)
}

func bodyETag(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// signedRequest builds a request carrying a valid signature for the test
// server's default credentials.
func signedRequest(method, target string, body []byte) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	etag := bodyETag(body)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	r.Header.Set("ETag", etag)
	r.Header.Set("X-Unixtime", ts)
	r.Header.Set("Authorization", BuildAuthHeader("testuser", "testpass", r.Host, ts, etag))
	return r
}

func do(s *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

// The body digest must not depend on how the transport chunked the body.
func TestBodyDigestChunkInvariant(t *testing.T) {
	body := make([]byte, 10000)
	rng := rand.New(rand.NewSource(1))
	rng.Read(body)

	whole := sha256.Sum256(body)
	want := hex.EncodeToString(whole[:])

	// One chunk, byte-at-a-time, transport-sized, tiny edges, mixed. The
	// last size repeats until the body is exhausted.
	splits := [][]int{
		{len(body)},
		{1},
		{4096, 4096, 1808},
		{1, 9998, 1},
		{3000, 1, 1, 1, 6997},
	}
	for si, chunkSizes := range splits {
		st := newReqState(&apiEntry{})
		rest := body
		for len(rest) > 0 {
			n := chunkSizes[0]
			if len(chunkSizes) > 1 {
				chunkSizes = chunkSizes[1:]
			}
			if n > len(rest) {
				n = len(rest)
			}
			st.ingest(rest[:n])
			rest = rest[n:]
		}
		if got := st.bodyDigest(); got != want {
			t.Fatalf("split %d: digest %s != %s", si, got, want)
		}
		if !bytes.Equal(st.body.Bytes(), body) {
			t.Fatalf("split %d: accumulated body differs", si)
		}
	}

	// Random splits.
	for trial := 0; trial < 20; trial++ {
		st := newReqState(&apiEntry{})
		rest := body
		for len(rest) > 0 {
			n := 1 + rng.Intn(len(rest))
			st.ingest(rest[:n])
			rest = rest[n:]
		}
		if got := st.bodyDigest(); got != want {
			t.Fatalf("random trial %d: digest %s != %s", trial, got, want)
		}
	}
}

func TestPipelineSetsStandardHeaders(t *testing.T) {
	s := newTestServer(t)

	w := do(s, httptest.NewRequest("GET", "/info", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("Server") != serverVersion {
		t.Fatalf("Server header = %q, want %q", w.Header().Get("Server"), serverVersion)
	}
	if w.Header().Get("Date") == "" {
		t.Fatal("Date header missing")
	}
	if _, err := time.Parse(http.TimeFormat, w.Header().Get("Date")); err != nil {
		t.Fatalf("Date header %q not RFC1123 GMT: %v", w.Header().Get("Date"), err)
	}
}

func TestAuthRequiredWithoutHeaders(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"symbol":"FOO","booktype":"simple"}`)
	r := httptest.NewRequest("POST", "/marketAdd", bytes.NewReader(body))
	if w := do(s, r); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestAuthMissingAnyHeaderForbidden(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"symbol":"FOO","booktype":"simple"}`)

	for _, drop := range []string{"ETag", "X-Unixtime", "Authorization"} {
		r := signedRequest("POST", "/marketAdd", body)
		r.Header.Del(drop)
		if w := do(s, r); w.Code != http.StatusForbidden {
			t.Fatalf("dropped %s: status = %d, want 403", drop, w.Code)
		}
	}
}

// Client clocks within the drift bound pass; beyond it they are forbidden
// even with an otherwise-correct signature.
func TestClockDrift(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		skew time.Duration
		code int
	}{
		{0, http.StatusOK},
		{-15 * time.Second, http.StatusOK},
		{15 * time.Second, http.StatusOK},
		{25 * time.Second, http.StatusForbidden},
		{-25 * time.Second, http.StatusForbidden},
	}
	for i, c := range cases {
		sym := "SKEW" + string(rune('A'+i))
		b := []byte(`{"symbol":"` + sym + `","booktype":"simple"}`)

		r := httptest.NewRequest("POST", "/marketAdd", bytes.NewReader(b))
		etag := bodyETag(b)
		ts := strconv.FormatInt(time.Now().Add(c.skew).Unix(), 10)
		r.Header.Set("ETag", etag)
		r.Header.Set("X-Unixtime", ts)
		r.Header.Set("Authorization", BuildAuthHeader("testuser", "testpass", r.Host, ts, etag))

		if w := do(s, r); w.Code != c.code {
			t.Fatalf("skew %v: status = %d, want %d", c.skew, w.Code, c.code)
		}
	}
}

func TestAuthWrongSecretForbidden(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"symbol":"FOO","booktype":"simple"}`)

	r := httptest.NewRequest("POST", "/marketAdd", bytes.NewReader(body))
	etag := bodyETag(body)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	r.Header.Set("ETag", etag)
	r.Header.Set("X-Unixtime", ts)
	r.Header.Set("Authorization", BuildAuthHeader("testuser", "wrongpass", r.Host, ts, etag))

	if w := do(s, r); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestAuthUnknownUserForbidden(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"symbol":"FOO","booktype":"simple"}`)

	r := httptest.NewRequest("POST", "/marketAdd", bytes.NewReader(body))
	etag := bodyETag(body)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	r.Header.Set("ETag", etag)
	r.Header.Set("X-Unixtime", ts)
	r.Header.Set("Authorization", BuildAuthHeader("mallory", "testpass", r.Host, ts, etag))

	if w := do(s, r); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

// A signature that is valid over the presented ETag but whose ETag does
// not match the body fails the body binding, not the signature check.
func TestETagBodyBinding(t *testing.T) {
	s := newTestServer(t)

	signedBody := []byte(`{"symbol":"FOO","booktype":"simple"}`)
	sentBody := []byte(`{"symbol":"BAR","booktype":"simple"}`)

	r := httptest.NewRequest("POST", "/marketAdd", bytes.NewReader(sentBody))
	etag := bodyETag(signedBody) // digest of a different body
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	r.Header.Set("ETag", etag)
	r.Header.Set("X-Unixtime", ts)
	r.Header.Set("Authorization", BuildAuthHeader("testuser", "testpass", r.Host, ts, etag))

	if w := do(s, r); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// An ETag on an unauthenticated route is still checked against the body.
func TestETagCheckedOnOpenRoutes(t *testing.T) {
	s := newTestServer(t)

	r := httptest.NewRequest("GET", "/info", nil)
	r.Header.Set("ETag", "0000000000000000000000000000000000000000000000000000000000000000")
	if w := do(s, r); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAuthBadUnixtimeForbidden(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"symbol":"FOO","booktype":"simple"}`)

	r := httptest.NewRequest("POST", "/marketAdd", bytes.NewReader(body))
	etag := bodyETag(body)
	r.Header.Set("ETag", etag)
	r.Header.Set("X-Unixtime", "not-a-number")
	r.Header.Set("Authorization", BuildAuthHeader("testuser", "testpass", r.Host, "not-a-number", etag))

	if w := do(s, r); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestAuthSignedForDifferentHostForbidden(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"symbol":"FOO","booktype":"simple"}`)

	r := httptest.NewRequest("POST", "/marketAdd", bytes.NewReader(body))
	etag := bodyETag(body)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	r.Header.Set("ETag", etag)
	r.Header.Set("X-Unixtime", ts)
	r.Header.Set("Authorization", BuildAuthHeader("testuser", "testpass", "other.host", ts, etag))

	if w := do(s, r); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
