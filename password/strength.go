package password

import (
	"strings"
	"unicode/utf8"
)

// Policy bounds, in characters.
const (
	MinLength = 8
	MaxLength = 256

	maxDigitOnlyLength = 10
)

// Reason names one violated strength rule.
type Reason string

// Reasons a password fails the policy.
const (
	ReasonNotString  Reason = "password must be a string"
	ReasonTooShort   Reason = "password must be at least 8 characters"
	ReasonTooLong    Reason = "password must be at most 256 characters"
	ReasonCommon     Reason = "password is too common"
	ReasonDigitsOnly Reason = "password must not be only digits"
)

// Strength is the outcome of a policy check. Reasons lists every violated
// rule, in rule order.
type Strength struct {
	Valid   bool
	Reasons []Reason
}

// Passwords and keyboard walks that are rejected regardless of length.
// Matching is case-insensitive.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"passw0rd":    {},
	"p@ssw0rd":    {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"87654321":    {},
	"11111111":    {},
	"00000000":    {},
	"qwerty":      {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"qwertyui":    {},
	"asdfghjkl":   {},
	"asdfasdf":    {},
	"zxcvbnm":     {},
	"zxcvbnm1":    {},
	"1q2w3e4r":    {},
	"1qaz2wsx":    {},
	"abc12345":    {},
	"abcd1234":    {},
	"iloveyou":    {},
	"letmein1":    {},
	"welcome1":    {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"superman":    {},
	"trustno1":    {},
	"whatever":    {},
	"dragon123":   {},
	"monkey123":   {},
	"admin123":    {},
	"changeme":    {},
}

// CheckStrength evaluates password against the master-password policy.
func CheckStrength(password string) Strength {
	var reasons []Reason

	n := utf8.RuneCountInString(password)
	if n < MinLength {
		reasons = append(reasons, ReasonTooShort)
	}
	if n > MaxLength {
		reasons = append(reasons, ReasonTooLong)
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		reasons = append(reasons, ReasonCommon)
	}
	if n > 0 && n <= maxDigitOnlyLength && allDigits(password) {
		reasons = append(reasons, ReasonDigitsOnly)
	}

	return Strength{Valid: len(reasons) == 0, Reasons: reasons}
}

// CheckStrengthOf evaluates an untyped value, as decoded from a form or JSON
// body. Anything that is not a string fails with ReasonNotString only.
func CheckStrengthOf(v any) Strength {
	switch p := v.(type) {
	case string:
		return CheckStrength(p)
	case *string:
		if p != nil {
			return CheckStrength(*p)
		}
	}
	return Strength{Reasons: []Reason{ReasonNotString}}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
