package audit

import "time"

// EventType enumerates security event kinds.
type EventType string

// Event types recorded by the engine.
const (
	EventAccountCreated         EventType = "account_created"
	EventLoginSuccess           EventType = "login_success"
	EventLoginFailed            EventType = "login_failed"
	EventAccountLocked          EventType = "account_locked"
	EventLogout                 EventType = "logout"
	EventTwoFactorEnabled       EventType = "2fa_enabled"
	EventTwoFactorDisabled      EventType = "2fa_disabled"
	EventBackupCodesRegenerated EventType = "backup_codes_regenerated"
	EventBackupCodeUsed         EventType = "backup_code_used"
	EventPasswordChanged        EventType = "password_changed"
	EventSessionRevoked         EventType = "session_revoked"
	EventAccountDeleted         EventType = "account_deleted"
)

// Event is an immutable security fact.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType EventType         `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}
