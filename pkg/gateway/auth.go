package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Auth protocol: mutating requests carry
//
//	Authorization: cscpp1-sha256 <user> <hex hmac-sha256 signature>
//
// where the signature covers a canonical string built from the method tag,
// the user, and the Host, X-Unixtime and ETag header values. The ETag is
// the client's hex SHA-256 of the request body, so the signature binds the
// request to its exact body content.
const (
	authMethodTag = "cscpp1-sha256"

	// maxClientDrift is the maximum seconds a client clock may differ
	// from the server clock.
	maxClientDrift = 20
)

// CredentialResolver maps an auth user name to its shared secret.
type CredentialResolver interface {
	Secret(user string) (string, bool)
}

// Credentials resolves users from a bulk-loaded record set, falling back
// to a single configured default pair.
type Credentials struct {
	Users         map[string]string
	DefaultUser   string
	DefaultSecret string
}

func (c *Credentials) Secret(user string) (string, bool) {
	if s, ok := c.Users[user]; ok {
		return s, true
	}
	if user == c.DefaultUser && c.DefaultSecret != "" {
		return c.DefaultSecret, true
	}
	return "", false
}

// canonicalString builds the exact byte sequence that is signed. Header
// values are appended in fixed order; a header that is absent or empty is
// skipped entirely, with no placeholder, so presence changes the signed
// bytes.
func canonicalString(user, host, unixtime, etag string) string {
	var b strings.Builder
	b.WriteString(authMethodTag)
	b.WriteByte('\n')
	b.WriteString(user)
	b.WriteByte('\n')
	for _, v := range []string{host, unixtime, etag} {
		if v != "" {
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// BuildAuthHeader computes the full Authorization header value for the
// given credentials and request headers. Clients and the server-side
// verifier share this construction.
func BuildAuthHeader(user, secret, host, unixtime, etag string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonicalString(user, host, unixtime, etag)))
	sig := hex.EncodeToString(mac.Sum(nil))
	return authMethodTag + " " + user + " " + sig
}

// authHeaderUser extracts the user name from a presented Authorization
// header. The full value is still verified byte-for-byte afterwards.
func authHeaderUser(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 3 || parts[0] != authMethodTag {
		return "", false
	}
	return parts[1], true
}
