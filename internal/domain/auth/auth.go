// Package auth validates staff API keys. Keys are stored as HMAC-SHA256
// hashes under a server-side pepper, so a leaked table does not leak usable
// credentials.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for any key that does not resolve to an active
// record. The cause is deliberately not distinguished.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID       string
	TenantID string
	KeyHash  string
	Name     string
	Scopes   []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey computes the hex-encoded HMAC-SHA256 of a raw API key.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier authenticates raw API keys against the repository.
type Verifier struct {
	apikeys Repository
	pepper  []byte
}

// NewVerifier creates a Verifier with the given repository and HMAC pepper.
func NewVerifier(apikeys Repository, pepper []byte) *Verifier {
	return &Verifier{apikeys: apikeys, pepper: pepper}
}

// Verify authenticates a raw API key and returns its record. The final
// constant-time comparison guards against timing side-channels even though
// the lookup already succeeded.
func (v *Verifier) Verify(ctx context.Context, key string) (*APIKeyInfo, error) {
	mac := hmac.New(sha256.New, v.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := v.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return nil, ErrUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, ErrUnauthorized
	}

	return info, nil
}
