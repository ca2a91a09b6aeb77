package goVault

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goVault/cryptox"
	"github.com/MrEthical07/goVault/password"
	"github.com/MrEthical07/goVault/totp"
)

// Config groups every tunable of the engine. Start from DefaultConfig and
// override fields; Build validates the result.
type Config struct {
	Password      PasswordConfig
	KeyDerivation KeyDerivationConfig
	TOTP          TOTPConfig
	Lockout       LockoutConfig
	Session       SessionConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters for stored password hashes.
// Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// UpgradeOnLogin re-hashes a stored password after a successful login when
	// its parameters differ from the current ones.
	UpgradeOnLogin bool
}

/*
====================================
KEY DERIVATION CONFIG
====================================
*/

// KeyDerivationConfig controls vault key derivation and how much CPU-bound
// argon2id work may run at once.
type KeyDerivationConfig struct {
	Time        uint32
	Memory      uint32
	Parallelism uint8
	SaltLength  int
	Concurrency int
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls code generation and backup code batches.
type TOTPConfig struct {
	Issuer           string
	Digits           int
	Period           time.Duration
	Skew             int
	Algorithm        string
	BackupCodeCount  int
	BackupCodeLength int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig drives the shared failure counter. Wrong passwords and wrong
// second factors both count toward MaxAttempts.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls idle expiry and session cleanup.
type SessionConfig struct {
	IdleTimeout time.Duration
	// CleanupInterval > 0 starts a background sweep of expired sessions.
	CleanupInterval time.Duration
	// RevokeOnPasswordChange invalidates every session of the user after a
	// password change, since vault keys derive from the password.
	RevokeOnPasswordChange bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls delivery to the optional audit sink. Persisted
// per-user events are always written.
type AuditConfig struct {
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters and the KDF histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	kdf := cryptox.DefaultKDFParams()
	tc := totp.DefaultConfig()

	return Config{
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			UpgradeOnLogin: true,
		},
		KeyDerivation: KeyDerivationConfig{
			Time:        kdf.Time,
			Memory:      kdf.Memory,
			Parallelism: kdf.Parallelism,
			SaltLength:  16,
			Concurrency: 4,
		},
		TOTP: TOTPConfig{
			Issuer:           tc.Issuer,
			Digits:           tc.Digits,
			Period:           tc.Period,
			Skew:             tc.Skew,
			Algorithm:        tc.Algorithm,
			BackupCodeCount:  totp.DefaultBackupCodeCount,
			BackupCodeLength: totp.DefaultBackupCodeLength,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		Session: SessionConfig{
			IdleTimeout:            30 * time.Minute,
			RevokeOnPasswordChange: true,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	// Password
	if err := c.passwordConfig().Validate(); err != nil {
		return fmt.Errorf("Password: %w", err)
	}

	// Key derivation
	if err := c.kdfParams().Validate(); err != nil {
		return fmt.Errorf("KeyDerivation: %w", err)
	}
	if c.KeyDerivation.SaltLength < 16 {
		return errors.New("KeyDerivation SaltLength must be >= 16")
	}
	if c.KeyDerivation.Concurrency < 1 {
		return errors.New("KeyDerivation Concurrency must be >= 1")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < time.Second {
		return errors.New("TOTP Period must be >= 1s")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be between 0 and 3")
	}
	switch c.TOTP.Algorithm {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256 or SHA512")
	}
	if c.TOTP.BackupCodeCount < 1 || c.TOTP.BackupCodeCount > 64 {
		return errors.New("TOTP BackupCodeCount must be between 1 and 64")
	}
	if c.TOTP.BackupCodeLength < 6 {
		return errors.New("TOTP BackupCodeLength must be >= 6")
	}

	// Lockout
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout MaxAttempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Session
	if c.Session.IdleTimeout <= 0 {
		return errors.New("Session IdleTimeout must be > 0")
	}
	if c.Session.CleanupInterval < 0 {
		return errors.New("Session CleanupInterval must be >= 0")
	}

	// Audit
	if c.Audit.BufferSize < 1 {
		return errors.New("Audit BufferSize must be >= 1")
	}

	return nil
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

func (c *Config) kdfParams() cryptox.KDFParams {
	return cryptox.KDFParams{
		Time:        c.KeyDerivation.Time,
		Memory:      c.KeyDerivation.Memory,
		Parallelism: c.KeyDerivation.Parallelism,
		KeyLength:   cryptox.KeySize,
	}
}

func (c *Config) totpConfig() totp.Config {
	return totp.Config{
		Issuer:    c.TOTP.Issuer,
		Digits:    c.TOTP.Digits,
		Period:    c.TOTP.Period,
		Skew:      c.TOTP.Skew,
		Algorithm: c.TOTP.Algorithm,
	}
}
