package gateway

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/orderentry/obgate/pkg/util"
)

// apiEntry is the static route metadata consulted by the request pipeline.
type apiEntry struct {
	method       string
	path         string
	authRequired bool
	wantsBody    bool
	handler      func(s *Server, w http.ResponseWriter, r *http.Request, st *reqState)
}

// reqState is the per-request pipeline state: the accumulating body, the
// running content hash, and the start timestamp. Allocated on
// header-complete, released exactly once on request finish.
type reqState struct {
	entry    *apiEntry
	body     bytes.Buffer
	bodyHash hash.Hash
	tstamp   time.Time

	releaseOnce sync.Once
}

func newReqState(e *apiEntry) *reqState {
	return &reqState{
		entry:    e,
		bodyHash: sha256.New(),
		tstamp:   time.Now(),
	}
}

// ingest appends one transport chunk to the body and feeds the running
// hash in the same call. The hash is never recomputed from the full
// buffer, so the digest is invariant to how the transport split the body.
func (st *reqState) ingest(chunk []byte) {
	st.body.Write(chunk)
	st.bodyHash.Write(chunk)
}

// bodyDigest finalizes the streaming hash as lowercase hex.
func (st *reqState) bodyDigest() string {
	return hex.EncodeToString(st.bodyHash.Sum(nil))
}

func (st *reqState) release() {
	st.releaseOnce.Do(func() {
		st.body.Reset()
	})
}

// pipeline wraps a handler with the per-request state machine: state
// allocation, body ingestion, the authorization gate, and the completion
// access log. OPTIONS requests are answered by the CORS layer and never
// allocate state.
func (s *Server) pipeline(e *apiEntry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			return
		}

		st := newReqState(e)
		w.Header().Set("Date", util.HTTPDate(st.tstamp))
		w.Header().Set("Server", serverVersion)

		defer func() {
			s.logAccess(r)
			st.release()
		}()

		if e.wantsBody {
			if err := ingestBody(r, st); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		if !s.preProcess(w, r, st) {
			return // response already sent
		}

		e.handler(s, w, r, st)
	}
}

// ingestBody streams the request body chunk by chunk into the state.
func ingestBody(r *http.Request, st *reqState) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Body.Read(buf)
		if n > 0 {
			st.ingest(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// preProcess is the pre-handler authorization gate. Routes flagged
// auth-required must present a valid signature; any route that supplies an
// ETag must match the received body bytes.
func (s *Server) preProcess(w http.ResponseWriter, r *http.Request, st *reqState) bool {
	if st.entry.authRequired && !s.verifyRequest(r, st) {
		w.WriteHeader(http.StatusForbidden)
		return false
	}

	// Bind the signed ETag to the bytes actually received. A valid
	// signature over a different body fails here.
	if etag := r.Header.Get("ETag"); etag != "" {
		if etag != st.bodyDigest() {
			w.WriteHeader(http.StatusBadRequest)
			return false
		}
	}

	return true
}

// verifyRequest checks the required auth headers, client clock drift, and
// the HMAC signature over the canonical string.
func (s *Server) verifyRequest(r *http.Request, st *reqState) bool {
	etag := r.Header.Get("ETag")
	unixtime := r.Header.Get("X-Unixtime")
	authHdr := r.Header.Get("Authorization")
	if etag == "" || unixtime == "" || authHdr == "" {
		return false
	}

	clientTime, err := strconv.ParseInt(unixtime, 10, 64)
	if err != nil {
		return false
	}
	drift := st.tstamp.Unix() - clientTime
	if drift < 0 {
		drift = -drift
	}
	if drift > maxClientDrift {
		return false
	}

	user, ok := authHeaderUser(authHdr)
	if !ok {
		return false
	}
	secret, ok := s.creds.Secret(user)
	if !ok {
		return false
	}

	expected := BuildAuthHeader(user, secret, r.Host, unixtime, etag)
	return authHdr == expected
}

// logAccess emits one access record at request completion.
func (s *Server) logAccess(r *http.Request) {
	s.log.Infow("access",
		"client", r.RemoteAddr,
		"ts", util.ISOTime(time.Now()),
		"method", r.Method,
		"path", r.URL.Path,
		"content_length", r.ContentLength)
}
