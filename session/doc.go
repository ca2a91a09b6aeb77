// Package session manages authenticated device sessions on top of a
// [store.Store].
//
// # Lifecycle
//
// A session is minted on successful login with an unguessable id and lives
// while now - LastActivity <= idle timeout. Every authenticated access calls
// [Store.Touch] (or [Store.Access], which checks expiry and touches in one
// step). Expiry is evaluated lazily; [Store.Sweep] removes expired records for
// hygiene but is never needed for correctness.
//
// # Layout
//
//	session:<id>          JSON-encoded [Session]
//	session:user:<userID> set of session ids for one user
//	session:all           set of every live session id
//
// # Architecture boundaries
//
// This package owns Session records only. It never reads or writes user
// records and makes no authentication decisions beyond idle expiry.
package session
