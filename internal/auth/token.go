// Package auth verifies bearer tokens issued by the authentication
// collaborator. Token issuance endpoints (registration, login, password
// handling) live outside this service; askd only consumes tokens.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken is returned for malformed, tampered, or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Verifier checks HMAC-SHA256 signed bearer tokens against a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Mint creates a signed token identifying username, valid for ttl. Used by
// the operator CLI and by tests; the production issuer is external.
func (v *Verifier) Mint(username string, ttl time.Duration) string {
	exp := v.now().Add(ttl).Unix()
	payload := fmt.Sprintf("%s\n%d", username, exp)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) +
		"." + base64.RawURLEncoding.EncodeToString(v.sign(payload))
}

// Verify returns the username embedded in a valid, unexpired token.
func (v *Verifier) Verify(token string) (string, error) {
	encPayload, encSig, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrInvalidToken
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(encPayload)
	if err != nil {
		return "", ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return "", ErrInvalidToken
	}

	payload := string(payloadBytes)
	if !hmac.Equal(sig, v.sign(payload)) {
		return "", ErrInvalidToken
	}

	username, expStr, ok := strings.Cut(payload, "\n")
	if !ok || username == "" {
		return "", ErrInvalidToken
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if v.now().Unix() >= exp {
		return "", ErrInvalidToken
	}

	return username, nil
}

func (v *Verifier) sign(payload string) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
