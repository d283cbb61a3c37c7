package password

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MinLength is the minimum password length in characters.
const MinLength = 12

// Symbols is the punctuation set that satisfies the symbol rule.
const Symbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Violation is a single failed strength rule.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	violationLength = Violation{Code: "min_length", Message: "Password must be at least 12 characters long"}
	violationLower  = Violation{Code: "lowercase", Message: "Password must contain at least one lowercase letter"}
	violationUpper  = Violation{Code: "uppercase", Message: "Password must contain at least one uppercase letter"}
	violationDigit  = Violation{Code: "digit", Message: "Password must contain at least one number"}
	violationSymbol = Violation{Code: "symbol", Message: "Password must contain at least one special character"}
)

// Result is the outcome of ValidateStrength.
type Result struct {
	Valid      bool
	Violations []Violation
}

type classes struct {
	lower, upper, digit, symbol bool
}

func classify(pw string) classes {
	var c classes
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= '0' && r <= '9':
			c.digit = true
		case strings.ContainsRune(Symbols, r):
			c.symbol = true
		}
	}
	return c
}

// ValidateStrength checks every rule and reports all failures in a fixed
// order: length, lowercase, uppercase, digit, symbol.
func ValidateStrength(pw string) Result {
	var out Result
	if utf8.RuneCountInString(pw) < MinLength {
		out.Violations = append(out.Violations, violationLength)
	}

	c := classify(pw)
	if !c.lower {
		out.Violations = append(out.Violations, violationLower)
	}
	if !c.upper {
		out.Violations = append(out.Violations, violationUpper)
	}
	if !c.digit {
		out.Violations = append(out.Violations, violationDigit)
	}
	if !c.symbol {
		out.Violations = append(out.Violations, violationSymbol)
	}

	out.Valid = len(out.Violations) == 0
	return out
}

// IsExpired reports whether a password last changed at last is older than
// maxAgeDays at now. A nil last change is treated as expired.
func IsExpired(last *time.Time, maxAgeDays int, now time.Time) bool {
	if last == nil {
		return true
	}
	return now.After(last.Add(time.Duration(maxAgeDays) * 24 * time.Hour))
}
