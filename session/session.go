package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionNotFound reports an unknown or removed session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired reports a session removed for idleness. It matches
	// ErrSessionNotFound.
	ErrSessionExpired  = fmt.Errorf("%w: idle timeout exceeded", ErrSessionNotFound)
)

// DefaultIdleTimeout is used when a Store is built without one.
const DefaultIdleTimeout = 30 * time.Minute

// Session is an authenticated device binding.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	DeviceInfo   string    `json:"device_info,omitempty"`
}

func sessionKey(id string) string {
	return "session:" + id
}

func userKey(userID string) string {
	return "session:user:" + userID
}

const allKey = "session:all"
