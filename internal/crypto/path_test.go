package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akarpov/svsim/internal/errs"
)

func TestParsePath(t *testing.T) {
	cases := []struct {
		in   string
		want PathComponents
	}{
		{"m/44'/501'/0'/0'/0'", DefaultPath()},
		{"m/44'/501'/2'/1'/7'", SolanaPath(2, 1, 7)},
		{"m/44h/501H/0'/0h/0'", DefaultPath()},
		{"M/44'/501'/0'/0'/0'", DefaultPath()},
		{"  m/44'/501'/0'/0'/0'  ", DefaultPath()},
		// Mixed form: change and addressIndex unmarked, normalized to
		// hardened.
		{"m/44'/501'/0'/0/0", DefaultPath()},
		{"m/44'/501'/3'/1/9", SolanaPath(3, 1, 9)},
		{"m/44'/501'/3'/1'/9", SolanaPath(3, 1, 9)},
		{"m/44'/501'/2147483647'/0'/0'", SolanaPath(2147483647, 0, 0)},
	}
	for _, c := range cases {
		got, err := ParsePath(c.in)
		require.NoError(t, err, "input %q", c.in)
		require.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestParsePathRejects(t *testing.T) {
	bad := []string{
		"",
		"m",
		"44'/501'/0'/0'/0'",
		"m/44'/501'/0'/0'",       // four levels
		"m/44'/501'/0'/0'/0'/0'", // six levels
		"m/44/501'/0'/0'/0'",     // purpose unmarked
		"m/44'/501/0'/0'/0'",     // coin type unmarked
		"m/44'/501'/0/0'/0'",     // account unmarked
		"m/44'//501'/0'/0'",
		"m/44'/abc'/0'/0'/0'",
		"m/44'/'/0'/0'/0'",
		"m/44'/501'/2147483648'/0'/0'", // exceeds hardened index range
		"m/44'/501'/-1'/0'/0'",
	}
	for _, in := range bad {
		_, err := ParsePath(in)
		require.Error(t, err, "input %q", in)
		require.Equal(t, errs.InvalidDerivationPath, errs.CodeOf(err), "input %q", in)
	}
}

func TestPathRoundTrip(t *testing.T) {
	// parse(format(c)) == c for valid component structs.
	for _, c := range []PathComponents{
		DefaultPath(),
		SolanaPath(0, 1, 0),
		SolanaPath(5, 0, 12),
		SolanaPath(2147483647, 1, 2147483647),
	} {
		parsed, err := ParsePath(c.String())
		require.NoError(t, err)
		require.Equal(t, c, parsed)
	}

	require.Equal(t, "m/44'/501'/0'/0'/0'", DefaultPath().String())
	require.Equal(t, "m/44'/501'/3'/1'/2'", SolanaPath(3, 1, 2).String())

	// Mixed input formats back to the fully-marked canonical form.
	mixed, err := ParsePath("m/44'/501'/0'/1/2")
	require.NoError(t, err)
	require.Equal(t, "m/44'/501'/0'/1'/2'", mixed.String())
}

func TestValidateSolanaPath(t *testing.T) {
	require.NoError(t, ValidateSolanaPath(DefaultPath()))
	require.NoError(t, ValidateSolanaPath(SolanaPath(9, 1, 3)))

	bad := []PathComponents{
		{Purpose: 49, CoinType: 501},
		{Purpose: 44, CoinType: 0},
		{Purpose: 44, CoinType: 501, Account: hardenedOffset},
	}
	for _, p := range bad {
		err := ValidateSolanaPath(p)
		require.Error(t, err)
		require.Equal(t, errs.InvalidDerivationPath, errs.CodeOf(err))
	}
}

func TestParseSolanaPath(t *testing.T) {
	p, err := ParseSolanaPath("")
	require.NoError(t, err)
	require.Equal(t, DefaultPath(), p)

	p, err = ParseSolanaPath("m/44'/501'/5'/0'/1'")
	require.NoError(t, err)
	require.Equal(t, SolanaPath(5, 0, 1), p)

	_, err = ParseSolanaPath("m/49'/501'/0'/0'/0'")
	require.Error(t, err)
	require.Equal(t, errs.InvalidDerivationPath, errs.CodeOf(err))

	_, err = ParseSolanaPath("m/44'/0'/0'/0'/0'")
	require.Error(t, err)
	require.Equal(t, errs.InvalidDerivationPath, errs.CodeOf(err))
}
