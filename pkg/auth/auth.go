// Package auth defines the authentication contract the session handler
// depends on to authorize an incoming evaluation request, plus a no-op and
// an HMAC-based reference implementation.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
)

// ErrUnauthorized is returned when a request fails authentication.
var ErrUnauthorized = errors.New("auth: request not authorized")

// Authenticator verifies an incoming request and reports the key id it is
// authorized to evaluate against.
type Authenticator interface {
	Verify(r *http.Request) (keyID uint64, err error)
}

// NoAuth authorizes every request unconditionally against a fixed key id,
// for local development and tests.
type NoAuth struct {
	KeyID uint64
}

func (n NoAuth) Verify(r *http.Request) (uint64, error) { return n.KeyID, nil }

// HMACAuth authorizes requests carrying a valid HMAC-SHA256 signature over
// the requested key id, keyed per client.
type HMACAuth struct {
	Secrets map[string][]byte // client id -> shared secret
}

func (h HMACAuth) Verify(r *http.Request) (uint64, error) {
	clientID := r.Header.Get("X-Client-Id")
	sigHex := r.Header.Get("X-Signature")
	keyIDHeader := r.Header.Get("X-Key-Id")
	if clientID == "" || sigHex == "" || keyIDHeader == "" {
		return 0, ErrUnauthorized
	}
	secret, ok := h.Secrets[clientID]
	if !ok {
		return 0, ErrUnauthorized
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(keyIDHeader))
	expected := mac.Sum(nil)

	given, err := hex.DecodeString(sigHex)
	if err != nil || subtle.ConstantTimeCompare(expected, given) != 1 {
		return 0, ErrUnauthorized
	}

	keyID, err := strconv.ParseUint(keyIDHeader, 10, 64)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return keyID, nil
}
