package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLamportsToSOL(t *testing.T) {
	cases := []struct {
		lamports uint64
		want     string
	}{
		{0, "0.000000000"},
		{1, "0.000000001"},
		{24981836, "0.024981836"},
		{1000000000, "1.000000000"},
		{1500000000, "1.500000000"},
		{123456789012, "123.456789012"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, LamportsToSOL(c.lamports))
	}
}

func TestSOLToLamports(t *testing.T) {
	cases := []struct {
		sol  string
		want uint64
	}{
		{"0", 0},
		{"1", 1000000000},
		{"0.024981836", 24981836},
		{"1.5", 1500000000},
		{" 2.25 ", 2250000000},
		{"0.0000000019", 1}, // extra precision truncates
	}
	for _, c := range cases {
		got, err := SOLToLamports(c.sol)
		require.NoError(t, err, "input %q", c.sol)
		require.Equal(t, c.want, got, "input %q", c.sol)
	}
}

func TestSOLToLamportsInvalid(t *testing.T) {
	for _, bad := range []string{"", "one", "1.2.3", "-1"} {
		_, err := SOLToLamports(bad)
		require.Error(t, err, "input %q", bad)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, lamports := range []uint64{0, 1, 5000, 999999999, 1000000000, 98765432109} {
		back, err := SOLToLamports(LamportsToSOL(lamports))
		require.NoError(t, err)
		require.Equal(t, lamports, back)
	}
}
