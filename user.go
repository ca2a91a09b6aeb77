package goVault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MrEthical07/goVault/store"
	"github.com/willf/bitset"
)

// User is the identity record. TOTPSecret is empty iff BackupCodes is empty
// iff two-factor authentication is disabled.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`

	TOTPSecret string `json:"totp_secret,omitempty"`
	// BackupCodes holds digests of the current batch, never plaintext.
	BackupCodes     []string       `json:"backup_codes,omitempty"`
	BackupCodeSalt  []byte         `json:"backup_code_salt,omitempty"`
	BackupCodesUsed *bitset.BitSet `json:"backup_codes_used,omitempty"`

	FailedLoginAttempts int        `json:"failed_login_attempts"`
	AccountLockedUntil  *time.Time `json:"account_locked_until,omitempty"`

	// VaultSalt salts the vault key derivation. It rotates on password change.
	VaultSalt []byte    `json:"vault_salt"`
	CreatedAt time.Time `json:"created_at"`
}

// TwoFactorEnabled reports whether a second factor is configured.
func (u *User) TwoFactorEnabled() bool {
	return u.TOTPSecret != ""
}

// BackupCodesRemaining counts unused backup codes.
func (u *User) BackupCodesRemaining() int {
	if u.BackupCodesUsed == nil {
		return len(u.BackupCodes)
	}
	return len(u.BackupCodes) - int(u.BackupCodesUsed.Count())
}

// LockedAt reports whether the account is locked at now.
func (u *User) LockedAt(now time.Time) bool {
	return u.AccountLockedUntil != nil && now.Before(*u.AccountLockedUntil)
}

func (u *User) clone() User {
	c := *u
	c.BackupCodes = slices.Clone(u.BackupCodes)
	c.BackupCodeSalt = slices.Clone(u.BackupCodeSalt)
	if u.BackupCodesUsed != nil {
		c.BackupCodesUsed = u.BackupCodesUsed.Clone()
	}
	if u.AccountLockedUntil != nil {
		t := *u.AccountLockedUntil
		c.AccountLockedUntil = &t
	}
	c.VaultSalt = slices.Clone(u.VaultSalt)
	return c
}

func (u *User) clearTwoFactor() {
	u.TOTPSecret = ""
	u.BackupCodes = nil
	u.BackupCodeSalt = nil
	u.BackupCodesUsed = nil
}

func userKey(userID string) string {
	return "user:" + userID
}

func usernameKey(username string) string {
	return "user:name:" + username
}

func vaultKey(userID string) string {
	return "vault:" + userID
}

func (e *Engine) loadUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	raw, err := e.kv.Get(ctx, userKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return &u, nil
}

func (e *Engine) saveUser(ctx context.Context, u *User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := e.kv.Put(ctx, userKey(u.ID), raw); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (e *Engine) userIDByName(ctx context.Context, username string) (string, error) {
	raw, err := e.kv.Get(ctx, usernameKey(username))
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup username: %w", err)
	}
	return string(raw), nil
}

// lockUser serializes every read-modify-write of one user record.
func (e *Engine) lockUser(ctx context.Context, userID string) (func(), error) {
	return e.locks.Lock(ctx, userKey(userID))
}
