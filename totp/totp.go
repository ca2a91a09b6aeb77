// Package totp implements RFC 6238 time-based one-time passwords and the
// single-use backup codes that stand in for them.
//
// Nothing here mutates user state. Verification returns what matched and the
// caller records consumption.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goVault/cryptox"
)

// SecretBytes is the raw secret size: 160 bits, the RFC 4226 recommendation.
const SecretBytes = 20

var (
	// ErrInvalidSecret is returned when a stored secret is not valid base32.
	ErrInvalidSecret = errors.New("invalid totp secret")
	// ErrUnsupportedAlgorithm is returned for an unknown HMAC algorithm name.
	ErrUnsupportedAlgorithm = errors.New("unsupported totp algorithm")
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config controls code shape and clock-skew tolerance.
type Config struct {
	Issuer    string
	Digits    int
	Period    time.Duration
	Skew      int
	Algorithm string
}

// DefaultConfig returns the authenticator-app defaults: six digits, 30 second
// steps, SHA1, and one step of tolerance either side.
func DefaultConfig() Config {
	return Config{
		Issuer:    "goVault",
		Digits:    6,
		Period:    30 * time.Second,
		Skew:      1,
		Algorithm: "SHA1",
	}
}

// Manager generates and verifies TOTP codes.
type Manager struct {
	config Config
}

// NewManager fills unset fields of cfg from DefaultConfig.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.Digits == 0 {
		cfg.Digits = def.Digits
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.Skew < 0 {
		cfg.Skew = 0
	}
	return &Manager{config: cfg}
}

// GenerateSecret returns a fresh base32 secret without padding.
func (m *Manager) GenerateSecret() (string, error) {
	raw, err := cryptox.RandomBytes(SecretBytes)
	if err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// Code returns the code for the time step containing t.
func (m *Manager) Code(secretBase32 string, t time.Time) (string, error) {
	secret, err := decodeSecret(secretBase32)
	if err != nil {
		return "", err
	}
	return hotpCode(secret, m.counter(t), m.config.Digits, m.config.Algorithm)
}

// VerifyCode reports whether code matches the step containing now or any step
// within the configured skew. Input that is not exactly Digits decimal digits
// is rejected before any HMAC is computed.
func (m *Manager) VerifyCode(secretBase32, code string, now time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits || !isNumeric(code) {
		return false, nil
	}

	secret, err := decodeSecret(secretBase32)
	if err != nil {
		return false, err
	}

	base := m.counter(now)
	matched := false
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		candidate, err := hotpCode(secret, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			matched = true
		}
	}
	return matched, nil
}

// Provisioning is what an external renderer needs to build a QR code or a
// manual-entry string for an authenticator app.
type Provisioning struct {
	SecretBase32 string `json:"secret_base32"`
	AccountLabel string `json:"account_label"`
	IssuerLabel  string `json:"issuer_label"`
	URI          string `json:"uri"`
}

// Provision builds the descriptor, including the otpauth:// key URI.
func (m *Manager) Provision(account, secretBase32 string) Provisioning {
	issuer := m.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(int(m.config.Period/time.Second)))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))

	return Provisioning{
		SecretBase32: secretBase32,
		AccountLabel: account,
		IssuerLabel:  issuer,
		URI:          "otpauth://totp/" + label + "?" + v.Encode(),
	}
}

func (m *Manager) counter(t time.Time) int64 {
	return t.Unix() / int64(m.config.Period/time.Second)
}

func decodeSecret(secretBase32 string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(secretBase32, " ", ""))
	normalized = strings.TrimRight(normalized, "=")
	secret, err := secretEncoding.DecodeString(normalized)
	if err != nil || len(secret) == 0 {
		return nil, ErrInvalidSecret
	}
	return secret, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
