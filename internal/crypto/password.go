package crypto

import (
	"fmt"
	"unicode"

	"github.com/akarpov/svsim/internal/errs"
)

const (
	// minPasswordLen is the hard gate applied by vault unlock.
	minPasswordLen = 6
	// strengthMinLen is the advisory strength-rule length.
	strengthMinLen = 8
)

// ValidatePassword enforces the minimal vault password gate. Password
// correctness itself is only provable by decrypting stored key material.
func ValidatePassword(password []byte) error {
	if len(password) < minPasswordLen {
		return errs.Ef(errs.InvalidPassword, "password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// CheckPasswordStrength returns every violated strength rule, not just the
// first. An empty result means the password satisfies all rules. Strength
// checking is advisory; the unlock gate is ValidatePassword.
func CheckPasswordStrength(password []byte) []string {
	var violations []string

	if len(password) < strengthMinLen {
		violations = append(violations, fmt.Sprintf("must be at least %d characters long", strengthMinLen))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range string(password) {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasUpper || !hasLower {
		violations = append(violations, "must contain both upper and lower case letters")
	}
	if !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if !hasSymbol {
		violations = append(violations, "must contain a symbol")
	}
	return violations
}
