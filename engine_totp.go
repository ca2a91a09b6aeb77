package goVault

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goVault/audit"
	"github.com/MrEthical07/goVault/internal/cpu"
	"github.com/MrEthical07/goVault/totp"
	"github.com/willf/bitset"
)

// TwoFactorSetup is returned once when two-factor authentication is enabled.
// The plaintext backup codes are not stored and cannot be retrieved again.
type TwoFactorSetup struct {
	Secret       string
	BackupCodes  []string
	Provisioning totp.Provisioning
}

// Enable2FA generates a TOTP secret and a fresh batch of backup codes and
// commits them immediately. There is no pending state: confirming that the
// authenticator app works is up to the caller. On an account that already has
// two-factor authentication the secret and every backup code are replaced.
func (e *Engine) Enable2FA(ctx context.Context, userID string) (TwoFactorSetup, error) {
	if err := e.ready(); err != nil {
		return TwoFactorSetup{}, err
	}

	unlock, err := e.lockUser(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	defer unlock()

	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, err
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return TwoFactorSetup{}, err
	}
	codes, err := e.newBackupCodes(ctx, u)
	if err != nil {
		return TwoFactorSetup{}, err
	}

	replaced := u.TwoFactorEnabled()
	u.TOTPSecret = secret
	if err := e.saveUser(ctx, u); err != nil {
		return TwoFactorSetup{}, err
	}

	e.record(ctx, u.ID, audit.EventTwoFactorEnabled, map[string]string{
		"replaced": strconv.FormatBool(replaced),
	})
	return TwoFactorSetup{
		Secret:       secret,
		BackupCodes:  codes,
		Provisioning: e.totp.Provision(u.Username, secret),
	}, nil
}

// Disable2FA clears the TOTP secret and backup codes after re-checking the
// password. A wrong password fails with ErrInvalidCredentials.
func (e *Engine) Disable2FA(ctx context.Context, userID, pw string) error {
	if err := e.ready(); err != nil {
		return err
	}

	unlock, err := e.lockUser(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := e.verifyPassword(ctx, pw, u.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	u.clearTwoFactor()
	if err := e.saveUser(ctx, u); err != nil {
		return err
	}
	e.record(ctx, u.ID, audit.EventTwoFactorDisabled, nil)
	return nil
}

// RegenerateBackupCodes replaces the backup codes of a two-factor account.
// Every previously issued code stops working.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	unlock, err := e.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.TwoFactorEnabled() {
		return nil, ErrTwoFactorNotEnabled
	}

	codes, err := e.newBackupCodes(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := e.saveUser(ctx, u); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.record(ctx, u.ID, audit.EventBackupCodesRegenerated, map[string]string{
		"count": strconv.Itoa(len(codes)),
	})
	return codes, nil
}

// newBackupCodes installs a fresh batch on u (salt, digests and an empty
// used set) and returns the plaintext codes.
func (e *Engine) newBackupCodes(ctx context.Context, u *User) ([]string, error) {
	codes, err := totp.GenerateBackupCodes(e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, err
	}
	salt, err := totp.NewBackupCodeSalt()
	if err != nil {
		return nil, err
	}
	hashes, err := cpu.Run(ctx, e.pool, func() ([]string, error) {
		return totp.HashBackupCodes(salt, u.ID, codes), nil
	})
	if err != nil {
		return nil, err
	}
	u.BackupCodes = hashes
	u.BackupCodeSalt = salt
	u.BackupCodesUsed = bitset.New(uint(len(codes)))
	return codes, nil
}
