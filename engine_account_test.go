package goVault

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goVault/audit"
	"github.com/MrEthical07/goVault/store"
)

func TestChangePasswordRekeysVaultAndRevokesSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "alice", alicePassword)

	sess, err := env.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	key, err := env.engine.UnlockVault(ctx, sess.ID, alicePassword)
	if err != nil {
		t.Fatalf("UnlockVault failed: %v", err)
	}
	if err := env.engine.SaveVault(ctx, sess.ID, key, map[string]string{"bank": "s3cret"}); err != nil {
		t.Fatalf("SaveVault failed: %v", err)
	}

	const newPassword = "N3w!MasterKey#2026"
	if err := env.engine.ChangePassword(ctx, u.ID, "wrong-password", newPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, u.ID, alicePassword, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, u.ID, alicePassword, newPassword); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := env.engine.Authenticate(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected sessions revoked, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "alice", alicePassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}

	sess, err = env.engine.Login(ctx, "alice", newPassword)
	if err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}
	newKey, err := env.engine.UnlockVault(ctx, sess.ID, newPassword)
	if err != nil {
		t.Fatalf("UnlockVault failed: %v", err)
	}
	if string(newKey) == string(key) {
		t.Fatal("vault key must change with the password")
	}

	var out map[string]string
	if err := env.engine.LoadVault(ctx, sess.ID, newKey, &out); err != nil {
		t.Fatalf("LoadVault with new key failed: %v", err)
	}
	if out["bank"] != "s3cret" {
		t.Fatalf("vault contents lost: %v", out)
	}
	if err := env.engine.LoadVault(ctx, sess.ID, key, &out); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("old key must no longer open the vault, got %v", err)
	}
}

func TestChangePasswordKeepsSessionsWhenConfigured(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Session.RevokeOnPasswordChange = false
	})
	ctx := context.Background()
	u := env.register(t, "alice", alicePassword)

	sess, err := env.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := env.engine.ChangePassword(ctx, u.ID, alicePassword, "N3w!MasterKey#2026"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, sess.ID); err != nil {
		t.Fatalf("session should survive, got %v", err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "alice", alicePassword)
	bob := env.register(t, "bob", bobPassword)

	sess, err := env.engine.Login(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	key, err := env.engine.UnlockVault(ctx, sess.ID, alicePassword)
	if err != nil {
		t.Fatalf("UnlockVault failed: %v", err)
	}
	if err := env.engine.SaveVault(ctx, sess.ID, key, []string{"secret"}); err != nil {
		t.Fatalf("SaveVault failed: %v", err)
	}

	if err := env.engine.DeleteAccount(ctx, u.ID, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := env.engine.DeleteAccount(ctx, u.ID, alicePassword); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if _, err := env.engine.Authenticate(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
	for _, key := range []string{vaultKey(u.ID), userKey(u.ID), usernameKey("alice")} {
		if _, err := env.kv.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("%s survived deletion: %v", key, err)
		}
	}
	if _, err := env.engine.GetUser(ctx, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	events, err := env.engine.SecurityEvents(ctx, u.ID, 0)
	if err != nil {
		t.Fatalf("SecurityEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected events purged, got %d", len(events))
	}

	env.engine.Close()
	sawDeleted := false
	for ev := range drain(env.sink) {
		if ev.EventType == audit.EventAccountDeleted && ev.UserID == u.ID {
			sawDeleted = true
		}
	}
	if !sawDeleted {
		t.Fatal("audit sink never received account_deleted")
	}

	// Other accounts are untouched.
	if _, err := env.kv.Get(ctx, userKey(bob.ID)); err != nil {
		t.Fatalf("other user affected: %v", err)
	}
}

func TestDeletedUsernameCanBeReused(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "alice", alicePassword)

	if err := env.engine.DeleteAccount(ctx, u.ID, alicePassword); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	again := env.register(t, "alice", bobPassword)
	if again.ID == u.ID {
		t.Fatal("re-registration must mint a new id")
	}
	if _, err := env.engine.Login(ctx, "alice", alicePassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must not work for the new account, got %v", err)
	}
}

func TestRegisterReclaimsDanglingUsername(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// An index entry left behind by an interrupted deletion.
	if err := env.kv.Put(ctx, usernameKey("alice"), []byte("ghost-id")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	u := env.register(t, "alice", alicePassword)
	if u.ID == "ghost-id" {
		t.Fatal("expected a fresh id")
	}
	if _, err := env.engine.Login(ctx, "alice", alicePassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

func drain(sink *audit.ChannelSink) <-chan audit.Event {
	out := make(chan audit.Event, len(sink.Events()))
	for {
		select {
		case ev := <-sink.Events():
			out <- ev
		default:
			close(out)
			return out
		}
	}
}
