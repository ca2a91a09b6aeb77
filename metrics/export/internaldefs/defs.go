package internaldefs

import (
	goVault "github.com/MrEthical07/goVault"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goVault.MetricID
	Name string
	Help string
}

// HistogramDef names an exported latency histogram.
type HistogramDef struct {
	ID   goVault.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goVault.MetricRegisterSuccess, Name: "govault_register_success_total", Help: "Successful account registrations."},
	{ID: goVault.MetricRegisterDuplicate, Name: "govault_register_duplicate_total", Help: "Registrations rejected for a taken username."},
	{ID: goVault.MetricRegisterWeakPassword, Name: "govault_register_weak_password_total", Help: "Registrations rejected by the password policy."},
	{ID: goVault.MetricLoginSuccess, Name: "govault_login_success_total", Help: "Successful logins."},
	{ID: goVault.MetricLoginFailure, Name: "govault_login_failure_total", Help: "Failed login attempts."},
	{ID: goVault.MetricLoginLocked, Name: "govault_login_locked_total", Help: "Login attempts against a locked account."},
	{ID: goVault.MetricTwoFactorRequired, Name: "govault_2fa_required_total", Help: "Logins that stopped for a second factor."},
	{ID: goVault.MetricTwoFactorSuccess, Name: "govault_2fa_success_total", Help: "Accepted second factors."},
	{ID: goVault.MetricTwoFactorFailure, Name: "govault_2fa_failure_total", Help: "Rejected second factors."},
	{ID: goVault.MetricBackupCodeUsed, Name: "govault_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: goVault.MetricBackupCodeRegenerated, Name: "govault_backup_code_regenerated_total", Help: "Backup code regenerations."},
	{ID: goVault.MetricAccountLocked, Name: "govault_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: goVault.MetricAccountDeleted, Name: "govault_account_deleted_total", Help: "Deleted accounts."},
	{ID: goVault.MetricPasswordChangeSuccess, Name: "govault_password_change_success_total", Help: "Successful password changes."},
	{ID: goVault.MetricPasswordChangeInvalidOld, Name: "govault_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: goVault.MetricPasswordRehashed, Name: "govault_password_rehashed_total", Help: "Stored hashes upgraded on login."},
	{ID: goVault.MetricSessionCreated, Name: "govault_session_created_total", Help: "Created sessions."},
	{ID: goVault.MetricSessionExpired, Name: "govault_session_expired_total", Help: "Sessions removed after the idle timeout."},
	{ID: goVault.MetricSessionRevoked, Name: "govault_session_revoked_total", Help: "Explicitly revoked sessions."},
	{ID: goVault.MetricLogout, Name: "govault_logout_total", Help: "Logouts."},
	{ID: goVault.MetricVaultUnlock, Name: "govault_vault_unlock_total", Help: "Vault keys handed out."},
	{ID: goVault.MetricVaultDecryptFailure, Name: "govault_vault_decrypt_failure_total", Help: "Vault decryptions that failed authentication."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goVault.MetricKDFLatency, Name: "govault_kdf_duration_seconds", Help: "Wall time of argon2id hashing and key derivation."},
}

// HistogramBounds are the upper bounds of the engine's eight KDF buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
