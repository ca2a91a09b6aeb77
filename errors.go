package goVault

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goVault/cryptox"
	"github.com/MrEthical07/goVault/password"
	"github.com/MrEthical07/goVault/session"
)

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong
	// password. The two are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is matched by every *LockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrTwoFactorRequired means the password was correct and a second factor
	// must be supplied. No session was created.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrInvalidTwoFactorCode is returned when neither the TOTP code nor any
	// unused backup code matched.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrTwoFactorNotEnabled  = errors.New("two-factor authentication not enabled")
	ErrUsernameTaken        = errors.New("username already taken")
	// ErrWeakPassword is matched by every *WeakPasswordError.
	ErrWeakPassword  = errors.New("password does not meet strength policy")
	ErrUserNotFound  = errors.New("user not found")
	ErrVaultNotFound = errors.New("vault not found")
	// ErrEngineNotReady is returned by a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not ready")

	ErrSessionNotFound = session.ErrSessionNotFound
	ErrSessionExpired  = session.ErrSessionExpired

	ErrInvalidInput        = cryptox.ErrInvalidInput
	ErrKeyDerivationFailed = cryptox.ErrKeyDerivationFailed
	ErrDecryptionFailed    = cryptox.ErrDecryptionFailed
)

// LockedError reports a locked account and when the lock lifts.
type LockedError struct {
	Until time.Time
}

// Error reports the lock expiry in UTC.
func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// Is matches ErrAccountLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// WeakPasswordError lists every strength rule a candidate password violated.
type WeakPasswordError struct {
	Reasons []password.Reason
}

// Error joins every violated rule.
func (e *WeakPasswordError) Error() string {
	parts := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		parts[i] = string(r)
	}
	return "weak password: " + strings.Join(parts, "; ")
}

// Is matches ErrWeakPassword.
func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}
