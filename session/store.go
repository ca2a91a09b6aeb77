package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/goVault/cryptox"
	"github.com/MrEthical07/goVault/internal/keylock"
	"github.com/MrEthical07/goVault/store"
)

const tokenBytes = 32

// Store persists sessions and enforces the idle timeout.
type Store struct {
	kv          store.Store
	idleTimeout time.Duration
	now         func() time.Time
	locks       keylock.Locker
}

// NewStore returns a session store over kv. A non-positive idleTimeout falls
// back to DefaultIdleTimeout; a nil now uses time.Now.
func NewStore(kv store.Store, idleTimeout time.Duration, now func() time.Time) *Store {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		kv:          kv,
		idleTimeout: idleTimeout,
		now:         now,
	}
}

// IdleTimeout returns the configured idle timeout.
func (s *Store) IdleTimeout() time.Duration {
	return s.idleTimeout
}

// Create mints and persists a new session for userID.
func (s *Store) Create(ctx context.Context, userID, deviceInfo string) (Session, error) {
	id, err := cryptox.RandomToken(tokenBytes)
	if err != nil {
		return Session{}, err
	}

	now := s.now().UTC()
	sess := Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		DeviceInfo:   deviceInfo,
	}
	if err := s.put(ctx, sess); err != nil {
		return Session{}, err
	}
	if err := s.kv.AddMember(ctx, userKey(userID), id); err != nil {
		return Session{}, fmt.Errorf("session: index user: %w", err)
	}
	if err := s.kv.AddMember(ctx, allKey, id); err != nil {
		return Session{}, fmt.Errorf("session: index all: %w", err)
	}
	return sess, nil
}

// Get loads a session without checking expiry.
func (s *Store) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, ErrSessionNotFound
	}
	raw, err := s.kv.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session: get: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("session: decode %s: %w", sessionID, err)
	}
	return sess, nil
}

// ListByUser returns the stored sessions of userID ordered by creation time.
// Index entries whose record has disappeared are pruned.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	ids, err := s.kv.Members(ctx, userKey(userID))
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}

	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			_ = s.kv.RemoveMember(ctx, userKey(userID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Touch sets LastActivity of the session to now.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.LastActivity = s.now().UTC()
	return s.put(ctx, sess)
}

// Access validates a session for an authenticated operation. Expired sessions
// are invalidated and reported as ErrSessionExpired; live ones are touched.
func (s *Store) Access(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, ErrSessionNotFound
	}
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if s.IsExpired(sess) {
		if err := s.remove(ctx, sessionID, sess.UserID); err != nil {
			return Session{}, err
		}
		return Session{}, ErrSessionExpired
	}

	sess.LastActivity = s.now().UTC()
	if err := s.put(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Invalidate removes a session. Unknown ids are not an error.
func (s *Store) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	sess, err := s.Get(ctx, sessionID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return s.remove(ctx, sessionID, "")
	case err != nil:
		return err
	}
	return s.remove(ctx, sessionID, sess.UserID)
}

// IsExpired reports whether the session has been idle longer than the timeout.
func (s *Store) IsExpired(sess Session) bool {
	return s.now().Sub(sess.LastActivity) > s.idleTimeout
}

// InvalidateAllForUser removes every session of userID and returns how many
// were removed. Only the listed ids leave the user index, so a session
// created concurrently stays indexed and reachable by a later call.
func (s *Store) InvalidateAllForUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.kv.Members(ctx, userKey(userID))
	if err != nil {
		return 0, fmt.Errorf("session: list: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if err := s.Invalidate(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Sweep removes expired sessions and dangling index entries. It returns the
// number of expired sessions removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	ids, err := s.kv.Members(ctx, allKey)
	if err != nil {
		return 0, fmt.Errorf("session: sweep: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			_ = s.kv.RemoveMember(ctx, allKey, id)
			continue
		}
		if err != nil {
			return removed, err
		}
		if !s.IsExpired(sess) {
			continue
		}
		ok, err := s.removeIfExpired(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// removeIfExpired re-reads the session under its lock so an Access that
// landed after the unlocked check keeps the session alive.
func (s *Store) removeIfExpired(ctx context.Context, sessionID string) (bool, error) {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return false, err
	}
	defer unlock()

	sess, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !s.IsExpired(sess) {
		return false, nil
	}
	if err := s.remove(ctx, sessionID, sess.UserID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) put(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.kv.Put(ctx, sessionKey(sess.ID), raw); err != nil {
		return fmt.Errorf("session: put: %w", err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, sessionID, userID string) error {
	if err := s.kv.Delete(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	if userID != "" {
		if err := s.kv.RemoveMember(ctx, userKey(userID), sessionID); err != nil {
			return fmt.Errorf("session: unindex user: %w", err)
		}
	}
	if err := s.kv.RemoveMember(ctx, allKey, sessionID); err != nil {
		return fmt.Errorf("session: unindex all: %w", err)
	}
	return nil
}
