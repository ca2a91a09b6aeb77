package goVault

import "time"

// SecurityReport summarizes the security-relevant settings of a built
// engine, for startup logs and operator tooling.
type SecurityReport struct {
	Argon2                 PasswordConfigReport
	VaultKDF               KDFReport
	TOTPAlgorithm          string
	TOTPDigits             int
	TOTPSkewSteps          int
	BackupCodeCount        int
	LockoutThreshold       int
	LockoutDuration        time.Duration
	SessionIdleTimeout     time.Duration
	SessionJanitorActive   bool
	RevokeOnPasswordChange bool
	HashUpgradeOnLogin     bool
	AuditSinkAttached      bool
}

// PasswordConfigReport describes the password hashing parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// KDFReport describes the vault key derivation parameters.
type KDFReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  int
	Concurrency int
}

// SecurityReport summarizes the effective security settings. It holds no
// secrets.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config

	return SecurityReport{
		Argon2: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		VaultKDF: KDFReport{
			Memory:      c.KeyDerivation.Memory,
			Time:        c.KeyDerivation.Time,
			Parallelism: c.KeyDerivation.Parallelism,
			SaltLength:  c.KeyDerivation.SaltLength,
			Concurrency: c.KeyDerivation.Concurrency,
		},
		TOTPAlgorithm:          c.TOTP.Algorithm,
		TOTPDigits:             c.TOTP.Digits,
		TOTPSkewSteps:          c.TOTP.Skew,
		BackupCodeCount:        c.TOTP.BackupCodeCount,
		LockoutThreshold:       c.Lockout.MaxAttempts,
		LockoutDuration:        c.Lockout.Duration,
		SessionIdleTimeout:     c.Session.IdleTimeout,
		SessionJanitorActive:   c.Session.CleanupInterval > 0,
		RevokeOnPasswordChange: c.Session.RevokeOnPasswordChange,
		HashUpgradeOnLogin:     c.Password.UpgradeOnLogin,
		AuditSinkAttached:      e.dispatcher != nil,
	}
}
