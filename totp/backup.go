package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"github.com/willf/bitset"
	"golang.org/x/crypto/argon2"
)

// BackupCodeAlphabet omits the look-alikes 0/O and 1/I/l.
const BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Batch defaults.
const (
	DefaultBackupCodeCount  = 10
	DefaultBackupCodeLength = 8
)

// Backup code digests use argon2id at the OWASP minimum (19 MiB, t=2). A
// code carries about 40 bits, so a fast digest would fall to an offline
// search of a leaked store.
const (
	backupCodeTime    = 2
	backupCodeMemory  = 19 * 1024
	backupCodeThreads = 1
	backupCodeKeyLen  = 32

	// BackupCodeSaltLength is the size of the per-batch salt.
	BackupCodeSaltLength = 16
)

// ErrInvalidBackupCodeShape is returned for a non-positive count or length.
var ErrInvalidBackupCodeShape = errors.New("invalid backup code count or length")

// GenerateBackupCodes returns count distinct random codes of length
// characters drawn from BackupCodeAlphabet. A code that collides with an
// earlier one in the batch is drawn again.
func GenerateBackupCodes(count, length int) ([]string, error) {
	if count <= 0 || length <= 0 {
		return nil, ErrInvalidBackupCodeShape
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := newBackupCode(length)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func newBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(BackupCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(BackupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// CanonicalBackupCode upper-cases code and drops separators users commonly
// type ("abcd-efgh", "ABCD EFGH").
func CanonicalBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

// NewBackupCodeSalt returns a random salt for one batch of backup codes.
func NewBackupCodeSalt() ([]byte, error) {
	salt := make([]byte, BackupCodeSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashBackupCode is the stored form of a backup code: argon2id over the user
// id and the canonical code, salted per batch. The whole batch shares salt,
// so verifying a candidate costs one derivation whatever the batch size.
func HashBackupCode(salt []byte, userID, code string) string {
	key := argon2.IDKey([]byte(userID+":"+CanonicalBackupCode(code)), salt,
		backupCodeTime, backupCodeMemory, backupCodeThreads, backupCodeKeyLen)
	return hex.EncodeToString(key)
}

// HashBackupCodes hashes a freshly generated batch for storage.
func HashBackupCodes(salt []byte, userID string, codes []string) []string {
	out := make([]string, len(codes))
	for i, code := range codes {
		out[i] = HashBackupCode(salt, userID, code)
	}
	return out
}

// VerifyBackupCode compares code against every stored hash whose index is not
// set in used and returns the index that matched. It never mutates used. A
// batch without a salt never matches.
func VerifyBackupCode(salt []byte, userID string, hashes []string, used *bitset.BitSet, code string) (int, bool) {
	if len(hashes) == 0 || len(salt) == 0 || strings.TrimSpace(code) == "" {
		return -1, false
	}

	candidate := []byte(HashBackupCode(salt, userID, code))
	match := -1
	for i, h := range hashes {
		if used != nil && used.Test(uint(i)) {
			continue
		}
		if subtle.ConstantTimeCompare(candidate, []byte(h)) == 1 && match < 0 {
			match = i
		}
	}
	return match, match >= 0
}
