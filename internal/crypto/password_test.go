package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akarpov/svsim/internal/errs"
)

func TestValidatePassword(t *testing.T) {
	require.NoError(t, ValidatePassword([]byte("pw1234")))
	require.NoError(t, ValidatePassword([]byte("a much longer password")))

	for _, bad := range [][]byte{nil, []byte(""), []byte("12345")} {
		err := ValidatePassword(bad)
		require.Error(t, err)
		require.Equal(t, errs.InvalidPassword, errs.CodeOf(err))
	}
}

func TestCheckPasswordStrength(t *testing.T) {
	require.Empty(t, CheckPasswordStrength([]byte("Str0ng!pass")))

	// Every violated rule is reported, not just the first.
	violations := CheckPasswordStrength([]byte("abc"))
	require.Len(t, violations, 4)

	violations = CheckPasswordStrength([]byte("alllowercase1!"))
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "upper and lower case")

	violations = CheckPasswordStrength([]byte("NoDigitsHere!"))
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "digit")

	violations = CheckPasswordStrength([]byte("NoSymbols123"))
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "symbol")

	violations = CheckPasswordStrength([]byte("Ab1!"))
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "characters long")
}
