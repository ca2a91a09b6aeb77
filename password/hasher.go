package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

var (
	// ErrInvalidHash is returned when an encoded hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrInvalidConfig is returned by NewHasher for unusable parameters.
	ErrInvalidConfig = errors.New("invalid password hashing config")
)

// Config holds argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns 64 MiB, three passes, two lanes, 16 byte salt and
// 32 byte digest.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate reports whether cfg meets the minimum hashing parameters.
func (cfg Config) Validate() error {
	switch {
	case cfg.Memory < minMemoryKB:
		return fmt.Errorf("%w: memory must be >= %d KiB", ErrInvalidConfig, minMemoryKB)
	case cfg.Time < minTime:
		return fmt.Errorf("%w: time must be >= %d", ErrInvalidConfig, minTime)
	case cfg.Parallelism < minParallelism:
		return fmt.Errorf("%w: parallelism must be >= %d", ErrInvalidConfig, minParallelism)
	case cfg.SaltLength < minSaltLength:
		return fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	}
	return nil
}

// Hasher produces and checks PHC-encoded argon2id hashes. It is immutable and
// safe for concurrent use.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

// Config returns the active parameters.
func (h *Hasher) Config() Config {
	return h.config
}

// HashPassword hashes password with a fresh random salt. The raw bytes of
// password are used as given (no Unicode normalization).
func (h *Hasher) HashPassword(password string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	digest := argon2.IDKey([]byte(password), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return encodeHash(phc{
		memory:      h.config.Memory,
		time:        h.config.Time,
		parallelism: h.config.Parallelism,
		salt:        salt,
		digest:      digest,
	}), nil
}

// VerifyPassword reports whether password matches encodedHash. The digest
// comparison is constant time. A malformed hash yields ErrInvalidHash.
func (h *Hasher) VerifyPassword(password, encodedHash string) (bool, error) {
	parsed, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.digest)))
	return subtle.ConstantTimeCompare(computed, parsed.digest) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with weaker or
// different parameters than h.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	return h.config.Memory > parsed.memory ||
		h.config.Time > parsed.time ||
		h.config.Parallelism > parsed.parallelism ||
		h.config.KeyLength != uint32(len(parsed.digest)), nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	digest      []byte
}

func encodeHash(p phc) string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		p.memory,
		p.time,
		p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.digest),
	)
}

func decodeHash(encoded string) (phc, error) {
	var out phc

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return out, fmt.Errorf("%w: not a PHC string", ErrInvalidHash)
	}
	if parts[1] != algorithmID {
		return out, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHash, parts[1])
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return out, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}

	for _, pair := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return out, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, pair)
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return out, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, pair)
		}
		switch name {
		case "m":
			out.memory = uint32(n)
		case "t":
			out.time = uint32(n)
		case "p":
			if n > 255 {
				return out, fmt.Errorf("%w: parallelism out of range", ErrInvalidHash)
			}
			out.parallelism = uint8(n)
		default:
			return out, fmt.Errorf("%w: unknown parameter %q", ErrInvalidHash, name)
		}
	}
	if out.memory < minMemoryKB || out.time < minTime || out.parallelism < minParallelism {
		return out, fmt.Errorf("%w: parameters below minimum", ErrInvalidHash)
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return out, fmt.Errorf("%w: bad salt", ErrInvalidHash)
	}
	if out.digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.digest) < int(minKeyLength) {
		return out, fmt.Errorf("%w: bad digest", ErrInvalidHash)
	}
	return out, nil
}
