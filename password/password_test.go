package password

import (
	"errors"
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.HashPassword("Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.VerifyPassword("Str0ng!Passw0rd", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = h.VerifyPassword("Str0ng!Passw0rd2", hash)
	if err != nil || ok {
		t.Fatalf("expected verification of other password to fail, ok=%v err=%v", ok, err)
	}
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher(t)
	a, _ := h.HashPassword("same-password")
	b, _ := h.HashPassword("same-password")
	if a == b {
		t.Fatal("expected different encodings for repeated hashes")
	}
}

func TestVerifyUsesEmbeddedParameters(t *testing.T) {
	old, err := NewHasher(Config{Memory: 8 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	hash, err := old.HashPassword("legacy-password")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	current := newTestHasher(t)
	ok, err := current.VerifyPassword("legacy-password", hash)
	if err != nil || !ok {
		t.Fatalf("expected cross-config verification, ok=%v err=%v", ok, err)
	}

	rehash, err := current.NeedsRehash(hash)
	if err != nil || !rehash {
		t.Fatalf("expected rehash for 16 byte digest, got %v err=%v", rehash, err)
	}

	fresh, _ := current.HashPassword("x")
	if rehash, _ := current.NeedsRehash(fresh); rehash {
		t.Fatal("fresh hash must not need rehash")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	h := newTestHasher(t)
	for _, bad := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0ZGlnZXN0ZGlnZXN0",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0ZGlnZXN0ZGlnZXN0",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0ZGlnZXN0ZGlnZXN0",
		"$argon2id$v=19$m=8192,t=1,x=1$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0ZGlnZXN0ZGlnZXN0",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$ZGlnZXN0ZGlnZXN0ZGlnZXN0",
	} {
		if _, err := h.VerifyPassword("pw", bad); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("expected ErrInvalidHash for %q, got %v", bad, err)
		}
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Memory = 1024
	if _, err := NewHasher(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func hasReason(s Strength, r Reason) bool {
	for _, got := range s.Reasons {
		if got == r {
			return true
		}
	}
	return false
}

func TestCheckStrength(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		valid   bool
		reasons []Reason
	}{
		{"strong", "Str0ng!Passw0rd", true, nil},
		{"short", "Ab1!", false, []Reason{ReasonTooShort}},
		{"empty", "", false, []Reason{ReasonTooShort}},
		{"too long", strings.Repeat("a", 257), false, []Reason{ReasonTooLong}},
		{"max length ok", strings.Repeat("ab", 128), true, nil},
		{"common any case", "PaSsWoRd", false, []Reason{ReasonCommon}},
		{"keyboard walk", "qwertyuiop", false, []Reason{ReasonCommon}},
		{"short digits", "1234", false, []Reason{ReasonTooShort, ReasonDigitsOnly}},
		{"common digits", "12345678", false, []Reason{ReasonCommon, ReasonDigitsOnly}},
		{"ten digits", "9081726354", false, []Reason{ReasonDigitsOnly}},
		{"eleven digits", "90817263541", true, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckStrength(tc.in)
			if got.Valid != tc.valid {
				t.Fatalf("valid=%v want %v (reasons %v)", got.Valid, tc.valid, got.Reasons)
			}
			if len(got.Reasons) != len(tc.reasons) {
				t.Fatalf("reasons=%v want %v", got.Reasons, tc.reasons)
			}
			for _, r := range tc.reasons {
				if !hasReason(got, r) {
					t.Fatalf("missing reason %q in %v", r, got.Reasons)
				}
			}
		})
	}
}

func TestCheckStrengthOfNonString(t *testing.T) {
	for _, v := range []any{nil, 12345678, []byte("Str0ng!Passw0rd"), (*string)(nil)} {
		got := CheckStrengthOf(v)
		if got.Valid || len(got.Reasons) != 1 || got.Reasons[0] != ReasonNotString {
			t.Fatalf("expected ReasonNotString for %#v, got %+v", v, got)
		}
	}

	s := "Str0ng!Passw0rd"
	if got := CheckStrengthOf(&s); !got.Valid {
		t.Fatalf("expected pointer to strong password to pass, got %+v", got)
	}
}
