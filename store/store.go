// Package store defines the persistence contract the vault engine runs on.
//
// The engine needs three shapes of data: single values (user, session and vault
// records), append-only lists (security events) and unordered member sets
// (per-user session indexes). Implementations live in sub-packages
// ([github.com/MrEthical07/goVault/store/redisstore],
// [github.com/MrEthical07/goVault/store/sqlitestore]); [Memory] is the
// in-process implementation used by tests and single-run tools.
//
// # What this package must NOT do
//
//   - Interpret values. Everything is opaque bytes.
//   - Provide transactions. Callers sequence multi-key updates themselves.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store.Get] when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value persistence collaborator.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored at key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value at key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes keys of any shape. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Append adds value to the end of the list at key.
	Append(ctx context.Context, key string, value []byte) error
	// List returns up to limit list entries, newest first. limit <= 0 means all.
	List(ctx context.Context, key string, limit int) ([][]byte, error)

	// AddMember adds member to the set at key.
	AddMember(ctx context.Context, key, member string) error
	// RemoveMember removes member from the set at key.
	RemoveMember(ctx context.Context, key, member string) error
	// Members returns the members of the set at key in no particular order.
	Members(ctx context.Context, key string) ([]string, error)

	Close() error
}
