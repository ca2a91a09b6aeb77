package goVault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/MrEthical07/goVault/audit"
	"github.com/MrEthical07/goVault/cryptox"
	"github.com/MrEthical07/goVault/password"
)

func (e *Engine) lockUsername(ctx context.Context, username string) (func(), error) {
	return e.locks.Lock(ctx, usernameKey(username))
}

// Register creates a user with two-factor authentication disabled. Usernames
// are case-sensitive. No session is created; callers log in afterward.
func (e *Engine) Register(ctx context.Context, username, pw string) (User, error) {
	if err := e.ready(); err != nil {
		return User{}, err
	}
	if username == "" {
		return User{}, fmt.Errorf("%w: username required", ErrInvalidInput)
	}

	unlock, err := e.lockUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	defer unlock()

	taken, err := e.usernameTaken(ctx, username)
	if err != nil {
		return User{}, err
	}
	if taken {
		e.metricInc(MetricRegisterDuplicate)
		return User{}, ErrUsernameTaken
	}

	if s := password.CheckStrength(pw); !s.Valid {
		e.metricInc(MetricRegisterWeakPassword)
		return User{}, &WeakPasswordError{Reasons: s.Reasons}
	}

	hash, err := e.hashPassword(ctx, pw)
	if err != nil {
		return User{}, err
	}
	id, err := cryptox.RandomID()
	if err != nil {
		return User{}, err
	}
	salt, err := cryptox.NewSalt(e.config.KeyDerivation.SaltLength)
	if err != nil {
		return User{}, err
	}

	u := &User{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		VaultSalt:    salt,
		CreatedAt:    e.now().UTC(),
	}
	// The record goes first so the index never points at nothing.
	if err := e.saveUser(ctx, u); err != nil {
		return User{}, err
	}
	if err := e.kv.Put(ctx, usernameKey(username), []byte(id)); err != nil {
		return User{}, fmt.Errorf("index username: %w", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.record(ctx, id, audit.EventAccountCreated, map[string]string{"username": username})
	return u.clone(), nil
}

// usernameTaken treats an index entry whose user record is gone (an
// interrupted deletion) as free.
func (e *Engine) usernameTaken(ctx context.Context, username string) (bool, error) {
	id, err := e.userIDByName(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := e.loadUser(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetUser returns a copy of the user record.
func (e *Engine) GetUser(ctx context.Context, userID string) (User, error) {
	if err := e.ready(); err != nil {
		return User{}, err
	}
	u, err := e.loadUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return u.clone(), nil
}

// LookupUser returns the user registered under username.
func (e *Engine) LookupUser(ctx context.Context, username string) (User, error) {
	if err := e.ready(); err != nil {
		return User{}, err
	}
	id, err := e.userIDByName(ctx, username)
	if err != nil {
		return User{}, err
	}
	return e.GetUser(ctx, id)
}

// ChangePassword replaces the password of userID.
//
// Side effects: the vault is re-encrypted under a key derived from the new
// password and a fresh salt, and when Session.RevokeOnPasswordChange is set
// every session of the user is invalidated, including the caller's.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
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

	ok, err := e.verifyPassword(ctx, oldPassword, u.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		return ErrInvalidCredentials
	}

	if s := password.CheckStrength(newPassword); !s.Valid {
		return &WeakPasswordError{Reasons: s.Reasons}
	}

	hash, err := e.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}
	newSalt, err := cryptox.NewSalt(e.config.KeyDerivation.SaltLength)
	if err != nil {
		return err
	}

	if err := e.rekeyVault(ctx, u, oldPassword, newPassword, newSalt); err != nil {
		return err
	}

	u.PasswordHash = hash
	u.VaultSalt = newSalt
	if err := e.saveUser(ctx, u); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	details := map[string]string{}
	if e.config.Session.RevokeOnPasswordChange {
		n, err := e.sessions.InvalidateAllForUser(ctx, u.ID)
		if err != nil {
			e.logger.WarnContext(ctx, "goVault: session revocation after password change failed",
				slog.String("user_id", u.ID),
				slog.Any("error", err),
			)
		}
		details["sessions_revoked"] = strconv.Itoa(n)
	}
	e.record(ctx, u.ID, audit.EventPasswordChanged, details)
	return nil
}

// DeleteAccount verifies the password and removes everything the user owns,
// in the order sessions, vault, user record, username index, security
// events. The account_deleted event reaches the audit sink before the
// user's stored events are purged.
func (e *Engine) DeleteAccount(ctx context.Context, userID, pw string) error {
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

	if _, err := e.sessions.InvalidateAllForUser(ctx, u.ID); err != nil {
		return err
	}

	unlockVault, err := e.lockVault(ctx, u.ID)
	if err != nil {
		return err
	}
	err = e.kv.Delete(ctx, vaultKey(u.ID))
	unlockVault()
	if err != nil {
		return fmt.Errorf("delete vault: %w", err)
	}

	if err := e.kv.Delete(ctx, userKey(u.ID)); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	unlockName, err := e.lockUsername(ctx, u.Username)
	if err != nil {
		return err
	}
	err = e.deleteUsernameIndex(ctx, u.Username, u.ID)
	unlockName()
	if err != nil {
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.record(ctx, u.ID, audit.EventAccountDeleted, map[string]string{"username": u.Username})
	if err := e.audit.Purge(ctx, u.ID); err != nil {
		e.logger.WarnContext(ctx, "goVault: audit purge failed",
			slog.String("user_id", u.ID),
			slog.Any("error", err),
		)
	}
	return nil
}

// deleteUsernameIndex drops the index only while it still points at userID.
func (e *Engine) deleteUsernameIndex(ctx context.Context, username, userID string) error {
	id, err := e.userIDByName(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if id != userID {
		return nil
	}
	if err := e.kv.Delete(ctx, usernameKey(username)); err != nil {
		return fmt.Errorf("delete username index: %w", err)
	}
	return nil
}
