// Package signature implements shared-secret request signing: an
// HMAC-SHA256 token over the canonical query string.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const tokenParam = "token"

var (
	ErrMissingToken = errors.New("request token is missing")
	ErrInvalidToken = errors.New("request token is invalid")
)

// Canonical strips the token parameter from a raw query string and
// keeps the remaining pairs byte-for-byte in their received order.
// No re-escaping happens, so the signed bytes are exactly what the
// client serialized.
func Canonical(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == tokenParam || strings.HasPrefix(pair, tokenParam+"=") {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// Sign computes the lower-case hex HMAC-SHA256 of the canonical query
// under the shared secret.
func Sign(canonical, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a supplied token against the expected signature for
// the raw query. The comparison is constant-time.
func Verify(rawQuery, token, secret string) bool {
	expected := Sign(Canonical(rawQuery), secret)
	return hmac.Equal([]byte(expected), []byte(token))
}

// Enforce is a no-op when no secret is configured. With a secret, a
// missing or mismatched token fails closed.
func Enforce(rawQuery, token, secret string) error {
	if secret == "" {
		return nil
	}
	if token == "" {
		return ErrMissingToken
	}
	if !Verify(rawQuery, token, secret) {
		return ErrInvalidToken
	}
	return nil
}
