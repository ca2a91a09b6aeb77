package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// NonceSize is the GCM nonce length in bytes.
const NonceSize = 12

// EncryptedRecord is the envelope produced by [Encrypt] and [SealWithSecret].
// All fields are standard base64. Salt is only set when the envelope carries
// its own key derivation salt.
//
// Callers treat it as opaque; only this package reads the fields.
type EncryptedRecord struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Salt       string `json:"salt,omitempty"`
}

// Encrypt serializes value to JSON and seals it under key with AES-256-GCM.
// Each call draws a fresh random nonce, so encrypting the same value twice
// yields different envelopes.
func Encrypt(value any, key []byte) (EncryptedRecord, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return EncryptedRecord{}, fmt.Errorf("%w: value is not serializable: %v", ErrInvalidInput, err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return EncryptedRecord{}, err
	}

	nonce, err := RandomBytes(NonceSize)
	if err != nil {
		return EncryptedRecord{}, err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return EncryptedRecord{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// Decrypt authenticates record under key and unmarshals the plaintext into v.
//
// Malformed envelopes fail with ErrInvalidInput before any decryption is
// attempted. Any authentication failure yields ErrDecryptionFailed and no
// plaintext reaches v.
func Decrypt(record EncryptedRecord, key []byte, v any) error {
	ciphertext, nonce, err := decodeRecord(record)
	if err != nil {
		return err
	}

	aead, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrDecryptionFailed
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: plaintext does not match target: %v", ErrInvalidInput, err)
	}
	return nil
}

// SealWithSecret derives a key from secret with a fresh random salt and
// encrypts value under it. The salt travels in the envelope.
func SealWithSecret(value any, secret []byte, p KDFParams) (EncryptedRecord, error) {
	salt, err := NewSalt(16)
	if err != nil {
		return EncryptedRecord{}, err
	}
	key, err := DeriveKey(secret, salt, p)
	if err != nil {
		return EncryptedRecord{}, err
	}

	record, err := Encrypt(value, key)
	if err != nil {
		return EncryptedRecord{}, err
	}
	record.Salt = base64.StdEncoding.EncodeToString(salt)
	return record, nil
}

// OpenWithSecret reverses [SealWithSecret].
func OpenWithSecret(record EncryptedRecord, secret []byte, p KDFParams, v any) error {
	if record.Salt == "" {
		return fmt.Errorf("%w: envelope carries no salt", ErrInvalidInput)
	}
	salt, err := base64.StdEncoding.DecodeString(record.Salt)
	if err != nil {
		return fmt.Errorf("%w: salt encoding", ErrInvalidInput)
	}
	// Reject malformed envelopes before paying for key derivation.
	if _, _, err := decodeRecord(record); err != nil {
		return err
	}

	key, err := DeriveKey(secret, salt, p)
	if err != nil {
		return err
	}
	return Decrypt(record, key, v)
}

func decodeRecord(record EncryptedRecord) (ciphertext, nonce []byte, err error) {
	if record.Ciphertext == "" || record.IV == "" {
		return nil, nil, fmt.Errorf("%w: envelope is missing ciphertext or iv", ErrInvalidInput)
	}

	nonce, err = base64.StdEncoding.DecodeString(record.IV)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: iv encoding", ErrInvalidInput)
	}
	if len(nonce) != NonceSize {
		return nil, nil, fmt.Errorf("%w: iv must be %d bytes", ErrInvalidInput, NonceSize)
	}

	ciphertext, err = base64.StdEncoding.DecodeString(record.Ciphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ciphertext encoding", ErrInvalidInput)
	}
	if len(ciphertext) == 0 {
		return nil, nil, fmt.Errorf("%w: empty ciphertext", ErrInvalidInput)
	}
	return ciphertext, nonce, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrInvalidInput, KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return cipher.NewGCM(block)
}
