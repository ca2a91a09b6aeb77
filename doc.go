// Package goVault is the authentication and cryptographic core of a local
// credential vault.
//
// An [Engine] registers users, runs the login state machine (password, then an
// optional TOTP or backup code), enforces account lockout, manages idle-timeout
// sessions and seals each user's vault with a key derived from the password.
// Every security-relevant transition is written to a per-user event log.
//
// Build one with [New]:
//
//	engine, err := goVault.New().
//		WithStore(store.NewMemory()).
//		WithLogger(slog.Default()).
//		Build()
//
// # Control flow outcomes
//
// [ErrTwoFactorRequired] and [ErrAccountLocked] are expected outcomes, not
// incidental failures. Callers branch on them with errors.Is (or errors.As for
// [*LockedError]) to prompt for a code or report when the lock lifts.
//
// # Architecture boundaries
//
// The engine owns user records. Sessions belong to [session.Store], events to
// [audit.Log]. Cross-record effects such as deleting a user's sessions are
// explicit calls. The engine keeps no "current user" state: every call names
// the user or session it acts on.
//
// # Concurrency
//
// Engine methods are safe for concurrent use. Read-modify-write of one user
// record is serialized, so concurrent failed logins are all counted. Password
// hashing and key derivation run on a bounded worker pool; a caller whose
// context ends stops waiting but the work is not interrupted.
package goVault
