package goVault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goVault/audit"
	"golang.org/x/sync/errgroup"
)

func TestPasswordFailuresLockAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "alice", alicePassword)

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := env.engine.Login(ctx, "alice", alicePassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *LockedError, got %T", err)
	}
	if want := env.clock.Now().Add(15 * time.Minute); !locked.Until.Equal(want) {
		t.Fatalf("lock until %v, want %v", locked.Until, want)
	}

	types := eventTypes(t, env, u.ID)
	if types[1] != audit.EventAccountLocked {
		t.Fatalf("expected account_locked after the third failure, got %v", types)
	}

	// Still locked one second before expiry.
	env.clock.Advance(15*time.Minute - time.Second)
	if _, err := env.engine.Login(ctx, "alice", alicePassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked before expiry, got %v", err)
	}

	env.clock.Advance(time.Second)
	if _, err := env.engine.Login(ctx, "alice", alicePassword); err != nil {
		t.Fatalf("login after lock expiry failed: %v", err)
	}
	got, err := env.engine.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.FailedLoginAttempts != 0 || got.AccountLockedUntil != nil {
		t.Fatalf("expected lock state reset, got attempts=%d until=%v", got.FailedLoginAttempts, got.AccountLockedUntil)
	}
}

func TestTwoFactorFailuresLockAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "alice", alicePassword)
	setup, err := env.engine.Enable2FA(ctx, u.ID)
	if err != nil {
		t.Fatalf("Enable2FA failed: %v", err)
	}

	bad := env.wrongCode(t, setup.Secret)
	for i := 0; i < 3; i++ {
		if _, err := env.engine.LoginWithCode(ctx, "alice", alicePassword, bad); !errors.Is(err, ErrInvalidTwoFactorCode) {
			t.Fatalf("attempt %d: expected ErrInvalidTwoFactorCode, got %v", i+1, err)
		}
	}

	if _, err := env.engine.LoginWithCode(ctx, "alice", alicePassword, env.currentCode(t, setup.Secret)); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct code, got %v", err)
	}
	if _, err := env.engine.LoginWithCode(ctx, "alice", alicePassword, setup.BackupCodes[0]); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with backup code, got %v", err)
	}

	got, err := env.engine.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.BackupCodesRemaining() != 10 {
		t.Fatal("a locked attempt must not consume a backup code")
	}
}

func TestPasswordAndCodeFailuresShareCounter(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "alice", alicePassword)
	setup, err := env.engine.Enable2FA(ctx, u.ID)
	if err != nil {
		t.Fatalf("Enable2FA failed: %v", err)
	}

	if _, err := env.engine.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	bad := env.wrongCode(t, setup.Secret)
	if _, err := env.engine.LoginWithCode(ctx, "alice", alicePassword, bad); !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("expected ErrInvalidTwoFactorCode, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "alice", "wrong-again"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := env.engine.LoginWithCode(ctx, "alice", alicePassword, env.currentCode(t, setup.Secret)); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestConcurrentFailedLoginsAllCounted(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Lockout.MaxAttempts = 50
	})
	u := env.register(t, "alice", alicePassword)

	const attempts = 8
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := env.engine.Login(context.Background(), "alice", "wrong-password")
			if !errors.Is(err, ErrInvalidCredentials) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}

	got, err := env.engine.GetUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.FailedLoginAttempts != attempts {
		t.Fatalf("lost update: expected %d failures, got %d", attempts, got.FailedLoginAttempts)
	}
}

func TestLoginHonorsContextCancellation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "alice", alicePassword)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.engine.Login(ctx, "alice", alicePassword); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
