package goVault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/goVault/cryptox"
	"github.com/MrEthical07/goVault/store"
)

// The vault is one encrypted blob per user, sealed under a key derived from
// the password and User.VaultSalt. The engine never stores that key; callers
// obtain it from UnlockVault and pass it back on every vault call.

func (e *Engine) lockVault(ctx context.Context, userID string) (func(), error) {
	return e.locks.Lock(ctx, vaultKey(userID))
}

// UnlockVault re-checks the password of the session's user and returns the
// vault key. Derivation is intentionally slow. A wrong password fails with
// ErrInvalidCredentials and does not count toward lockout.
func (e *Engine) UnlockVault(ctx context.Context, sessionID, pw string) ([]byte, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	sess, err := e.Authenticate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lockUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, err := e.loadUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	ok, err := e.verifyPassword(ctx, pw, u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	key, err := e.deriveVaultKey(ctx, pw, u.VaultSalt)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricVaultUnlock)
	return key, nil
}

// SaveVault encrypts value under key and replaces the user's vault. When a
// vault already exists key must open it, so a wrong key can never overwrite
// data with something undecryptable.
func (e *Engine) SaveVault(ctx context.Context, sessionID string, key []byte, value any) error {
	if err := e.ready(); err != nil {
		return err
	}
	sess, err := e.Authenticate(ctx, sessionID)
	if err != nil {
		return err
	}

	unlock, err := e.lockVault(ctx, sess.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := e.loadVaultRecord(ctx, sess.UserID)
	switch {
	case errors.Is(err, ErrVaultNotFound):
	case err != nil:
		return err
	default:
		var discard json.RawMessage
		if err := cryptox.Decrypt(existing, key, &discard); err != nil {
			e.metricInc(MetricVaultDecryptFailure)
			return err
		}
	}

	record, err := cryptox.Encrypt(value, key)
	if err != nil {
		return err
	}
	return e.storeVaultRecord(ctx, sess.UserID, record)
}

// LoadVault decrypts the user's vault into out. A wrong key or a tampered
// blob fails with ErrDecryptionFailed and leaves out untouched.
func (e *Engine) LoadVault(ctx context.Context, sessionID string, key []byte, out any) error {
	if err := e.ready(); err != nil {
		return err
	}
	sess, err := e.Authenticate(ctx, sessionID)
	if err != nil {
		return err
	}

	record, err := e.loadVaultRecord(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if err := cryptox.Decrypt(record, key, out); err != nil {
		if errors.Is(err, ErrDecryptionFailed) {
			e.metricInc(MetricVaultDecryptFailure)
		}
		return err
	}
	return nil
}

// rekeyVault re-encrypts the vault for a password change. The caller holds
// the user lock and persists newSalt afterwards.
func (e *Engine) rekeyVault(ctx context.Context, u *User, oldPassword, newPassword string, newSalt []byte) error {
	unlock, err := e.lockVault(ctx, u.ID)
	if err != nil {
		return err
	}
	defer unlock()

	record, err := e.loadVaultRecord(ctx, u.ID)
	if errors.Is(err, ErrVaultNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	oldKey, err := e.deriveVaultKey(ctx, oldPassword, u.VaultSalt)
	if err != nil {
		return err
	}
	var plaintext json.RawMessage
	if err := cryptox.Decrypt(record, oldKey, &plaintext); err != nil {
		e.metricInc(MetricVaultDecryptFailure)
		return fmt.Errorf("rekey vault: %w", err)
	}

	newKey, err := e.deriveVaultKey(ctx, newPassword, newSalt)
	if err != nil {
		return err
	}
	rekeyed, err := cryptox.Encrypt(plaintext, newKey)
	if err != nil {
		return err
	}
	return e.storeVaultRecord(ctx, u.ID, rekeyed)
}

func (e *Engine) loadVaultRecord(ctx context.Context, userID string) (cryptox.EncryptedRecord, error) {
	raw, err := e.kv.Get(ctx, vaultKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return cryptox.EncryptedRecord{}, ErrVaultNotFound
	}
	if err != nil {
		return cryptox.EncryptedRecord{}, fmt.Errorf("load vault: %w", err)
	}

	var record cryptox.EncryptedRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return cryptox.EncryptedRecord{}, fmt.Errorf("%w: vault envelope: %v", ErrInvalidInput, err)
	}
	return record, nil
}

func (e *Engine) storeVaultRecord(ctx context.Context, userID string, record cryptox.EncryptedRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}
	if err := e.kv.Put(ctx, vaultKey(userID), raw); err != nil {
		return fmt.Errorf("save vault: %w", err)
	}
	return nil
}
