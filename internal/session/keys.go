package session

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveCookieKeys expands one secret into the securecookie hash key (32
// bytes) and AES-256 block key (32 bytes).
func DeriveCookieKeys(secret []byte) (hashKey, blockKey []byte, err error) {
	if len(secret) < 16 {
		return nil, nil, fmt.Errorf("session secret must be at least 16 bytes (got %d)", len(secret))
	}
	hashKey, err = expand(secret, "marketbook cookie hash")
	if err != nil {
		return nil, nil, err
	}
	blockKey, err = expand(secret, "marketbook cookie block")
	if err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}

func expand(secret []byte, info string) ([]byte, error) {
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("derive %s: %w", info, err)
	}
	return out, nil
}
