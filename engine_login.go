package goVault

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/goVault/audit"
	"github.com/MrEthical07/goVault/internal/cpu"
	"github.com/MrEthical07/goVault/totp"
	"github.com/willf/bitset"
)

const (
	factorPassword   = "password"
	factorTOTP       = "totp"
	factorBackupCode = "backup_code"
)

// Login authenticates with a password only. Accounts with two-factor
// authentication enabled get ErrTwoFactorRequired after a correct password;
// retry with LoginWithCode.
func (e *Engine) Login(ctx context.Context, username, password string) (Session, error) {
	return e.login(ctx, username, password, "")
}

// LoginWithCode authenticates with a password and a second factor. code may
// be a current TOTP code or an unused backup code; an empty code behaves
// like Login.
//
// Wrong passwords and wrong codes share one failure counter. Reaching
// Lockout.MaxAttempts locks the account for Lockout.Duration, and while
// locked every attempt fails with *LockedError no matter what is supplied.
func (e *Engine) LoginWithCode(ctx context.Context, username, password, code string) (Session, error) {
	return e.login(ctx, username, password, code)
}

func (e *Engine) login(ctx context.Context, username, password, code string) (Session, error) {
	if err := e.ready(); err != nil {
		return Session{}, err
	}

	userID, err := e.userIDByName(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		e.equalizeTiming(ctx, password)
		e.metricInc(MetricLoginFailure)
		e.record(ctx, "", audit.EventLoginFailed, map[string]string{"reason": "unknown_user"})
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	unlock, err := e.lockUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	u, err := e.loadUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	now := e.now()
	if u.LockedAt(now) {
		e.metricInc(MetricLoginLocked)
		e.record(ctx, u.ID, audit.EventLoginFailed, map[string]string{"reason": "locked"})
		return Session{}, &LockedError{Until: *u.AccountLockedUntil}
	}

	dirty := false
	if u.AccountLockedUntil != nil {
		u.AccountLockedUntil = nil
		u.FailedLoginAttempts = 0
		dirty = true
	}

	ok, err := e.verifyPassword(ctx, password, u.PasswordHash)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, e.registerFailure(ctx, u, now, factorPassword, ErrInvalidCredentials)
	}

	if !u.TwoFactorEnabled() {
		return e.completeLogin(ctx, u, password, factorPassword)
	}

	if code == "" {
		if dirty {
			if err := e.saveUser(ctx, u); err != nil {
				return Session{}, err
			}
		}
		e.metricInc(MetricTwoFactorRequired)
		return Session{}, ErrTwoFactorRequired
	}

	factor, backupIndex, err := e.verifySecondFactor(ctx, u, code, now)
	if err != nil {
		return Session{}, err
	}
	if factor == "" {
		e.metricInc(MetricTwoFactorFailure)
		return Session{}, e.registerFailure(ctx, u, now, "two_factor", ErrInvalidTwoFactorCode)
	}

	if factor == factorBackupCode {
		if u.BackupCodesUsed == nil {
			u.BackupCodesUsed = bitset.New(uint(len(u.BackupCodes)))
		}
		u.BackupCodesUsed.Set(uint(backupIndex))
		e.metricInc(MetricBackupCodeUsed)
		e.record(ctx, u.ID, audit.EventBackupCodeUsed, map[string]string{
			"remaining": strconv.Itoa(u.BackupCodesRemaining()),
		})
	}
	e.metricInc(MetricTwoFactorSuccess)

	return e.completeLogin(ctx, u, password, factor)
}

// verifySecondFactor tries TOTP first, then the unused backup codes. It
// returns the factor that matched, or "" when neither did.
func (e *Engine) verifySecondFactor(ctx context.Context, u *User, code string, now time.Time) (string, int, error) {
	ok, err := e.totp.VerifyCode(u.TOTPSecret, code, now)
	if err != nil {
		return "", -1, err
	}
	if ok {
		return factorTOTP, -1, nil
	}

	if u.BackupCodesRemaining() == 0 {
		return "", -1, nil
	}
	idx, err := cpu.Run(ctx, e.pool, func() (int, error) {
		idx, _ := totp.VerifyBackupCode(u.BackupCodeSalt, u.ID, u.BackupCodes, u.BackupCodesUsed, code)
		return idx, nil
	})
	if err != nil {
		return "", -1, err
	}
	if idx >= 0 {
		return factorBackupCode, idx, nil
	}
	return "", -1, nil
}

func (e *Engine) registerFailure(ctx context.Context, u *User, now time.Time, reason string, cause error) error {
	u.FailedLoginAttempts++

	locked := false
	if u.FailedLoginAttempts >= e.config.Lockout.MaxAttempts {
		until := now.Add(e.config.Lockout.Duration).UTC()
		u.AccountLockedUntil = &until
		locked = true
	}

	if err := e.saveUser(ctx, u); err != nil {
		return err
	}

	e.metricInc(MetricLoginFailure)
	e.record(ctx, u.ID, audit.EventLoginFailed, map[string]string{
		"reason":   reason,
		"attempts": strconv.Itoa(u.FailedLoginAttempts),
	})
	if locked {
		e.metricInc(MetricAccountLocked)
		e.record(ctx, u.ID, audit.EventAccountLocked, map[string]string{
			"until": u.AccountLockedUntil.Format(time.RFC3339),
		})
	}
	return cause
}

func (e *Engine) completeLogin(ctx context.Context, u *User, password, factor string) (Session, error) {
	u.FailedLoginAttempts = 0
	u.AccountLockedUntil = nil

	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, u, password)
	}

	if err := e.saveUser(ctx, u); err != nil {
		return Session{}, err
	}

	sess, err := e.sessions.Create(ctx, u.ID, deviceInfoFromContext(ctx))
	if err != nil {
		return Session{}, err
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.record(ctx, u.ID, audit.EventLoginSuccess, map[string]string{
		"factor": factor,
		"device": sess.DeviceInfo,
	})
	return sess, nil
}

// upgradeHash re-hashes with current parameters when the stored hash is
// weaker or differently shaped. Failures keep the old hash.
func (e *Engine) upgradeHash(ctx context.Context, u *User, password string) {
	needs, err := e.hasher.NeedsRehash(u.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hashPassword(ctx, password)
	if err != nil {
		e.logger.WarnContext(ctx, "goVault: password rehash failed",
			slog.String("user_id", u.ID),
			slog.Any("error", err),
		)
		return
	}
	u.PasswordHash = hash
	e.metricInc(MetricPasswordRehashed)
}

// equalizeTiming spends one password verification on unknown usernames so
// response time does not reveal whether an account exists.
func (e *Engine) equalizeTiming(ctx context.Context, password string) {
	e.dummyOnce.Do(func() {
		hash, err := e.hasher.HashPassword("goVault-timing-equalizer")
		if err == nil {
			e.dummyHash = hash
		}
	})
	if e.dummyHash == "" {
		return
	}
	_, _ = e.verifyPassword(ctx, password, e.dummyHash)
}

// Logout invalidates sessionID. Unknown and expired ids succeed.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	if err := e.sessions.Invalidate(ctx, sessionID); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	if sess.UserID != "" {
		e.record(ctx, sess.UserID, audit.EventLogout, nil)
	}
	return nil
}

// Authenticate validates a session for an authenticated operation and
// refreshes its activity timestamp. Idle sessions are removed and reported
// as ErrSessionExpired, which also matches ErrSessionNotFound.
func (e *Engine) Authenticate(ctx context.Context, sessionID string) (Session, error) {
	if err := e.ready(); err != nil {
		return Session{}, err
	}

	sess, err := e.sessions.Access(ctx, sessionID)
	if errors.Is(err, ErrSessionExpired) {
		e.metricInc(MetricSessionExpired)
	}
	return sess, err
}

// ListSessions returns the live sessions of userID, oldest first.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	all, err := e.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := all[:0]
	for _, s := range all {
		if !e.sessions.IsExpired(s) {
			live = append(live, s)
		}
	}
	return live, nil
}

// RevokeSession invalidates one session belonging to userID, for example a
// lost device. A session owned by someone else reports ErrSessionNotFound.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return ErrSessionNotFound
	}
	if err := e.sessions.Invalidate(ctx, sessionID); err != nil {
		return err
	}

	e.metricInc(MetricSessionRevoked)
	e.record(ctx, userID, audit.EventSessionRevoked, map[string]string{"device": sess.DeviceInfo})
	return nil
}

// RevokeAllSessions invalidates every session of userID and returns how many
// were removed. It holds the user lock, so a login of the same user either
// finishes first and is revoked or starts afterwards.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	unlock, err := e.lockUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	n, err := e.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return n, err
	}
	if n > 0 {
		e.metricInc(MetricSessionRevoked)
		e.record(ctx, userID, audit.EventSessionRevoked, map[string]string{"count": strconv.Itoa(n)})
	}
	return n, nil
}
