package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// DefaultTokenBytes is the entropy of a [RandomToken] when no length is given.
const DefaultTokenBytes = 32

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: byte length must be positive", ErrInvalidInput)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomToken returns byteLength random bytes encoded as unpadded base64url.
// A byteLength <= 0 selects DefaultTokenBytes.
func RandomToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenBytes
	}
	b, err := RandomBytes(byteLength)
	if err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandomID returns a random (version 4) UUID string.
func RandomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
