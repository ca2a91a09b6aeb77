// Package password hashes and verifies master passwords with argon2id and
// enforces the master-password strength policy.
//
// # Output format
//
// Hashes are self-describing PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads the salt and cost parameters back out of the string, so
// no separately stored salt is needed. [Hasher.NeedsRehash] reports hashes
// produced with weaker parameters than the current configuration.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goVault package.
//   - Log plaintext passwords.
package password
