// Package cryptox holds the vault's cryptographic primitives: argon2id key
// derivation, AES-256-GCM envelopes for arbitrary JSON-serializable values and
// secure random tokens.
//
// Every failure maps onto one of three sentinels ([ErrInvalidInput],
// [ErrKeyDerivationFailed], [ErrDecryptionFailed]). Decryption never reports
// why authentication failed: a wrong key, a flipped ciphertext byte and a
// flipped nonce byte are indistinguishable to the caller.
package cryptox

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidInput reports a malformed argument or envelope, detected before any
	// cryptographic work.
	ErrInvalidInput = errors.New("invalid input")
	// ErrKeyDerivationFailed reports unusable key derivation parameters or secrets.
	ErrKeyDerivationFailed = errors.New("key derivation failed")
	// ErrDecryptionFailed reports an authentication failure while opening an envelope.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

const minSaltLength = 8

// KDFParams are argon2id cost parameters. Memory is in KiB.
//
// Derivation with the defaults takes a few hundred milliseconds and 64 MiB of
// memory per call. That latency is the brute-force defense.
type KDFParams struct {
	Time        uint32
	Memory      uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultKDFParams returns the parameters used for vault keys.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:        3,
		Memory:      64 * 1024,
		Parallelism: 2,
		KeyLength:   KeySize,
	}
}

// Validate reports whether p can drive argon2id.
func (p KDFParams) Validate() error {
	switch {
	case p.Time == 0:
		return fmt.Errorf("%w: time cost must be >= 1", ErrKeyDerivationFailed)
	case p.Memory == 0:
		return fmt.Errorf("%w: memory cost must be >= 1 KiB", ErrKeyDerivationFailed)
	case p.Parallelism == 0:
		return fmt.Errorf("%w: parallelism must be >= 1", ErrKeyDerivationFailed)
	case p.KeyLength == 0:
		return fmt.Errorf("%w: key length must be >= 1", ErrKeyDerivationFailed)
	case p.Memory < 8*uint32(p.Parallelism):
		return fmt.Errorf("%w: memory cost must be >= 8*parallelism KiB", ErrKeyDerivationFailed)
	}
	return nil
}

// DeriveKey stretches secret with salt into a key of p.KeyLength bytes.
// It is deterministic for identical inputs.
func DeriveKey(secret, salt []byte, p KDFParams) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrKeyDerivationFailed)
	}
	if len(salt) < minSaltLength {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes", ErrKeyDerivationFailed, minSaltLength)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return argon2.IDKey(secret, salt, p.Time, p.Memory, p.Parallelism, p.KeyLength), nil
}

// NewSalt returns n random bytes for use as a KDF salt.
func NewSalt(n int) ([]byte, error) {
	if n < minSaltLength {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes", ErrInvalidInput, minSaltLength)
	}
	return RandomBytes(n)
}
