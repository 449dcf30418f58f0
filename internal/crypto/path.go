package crypto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akarpov/svsim/internal/errs"
)

const (
	hardenedOffset = uint32(1 << 31)
	maxPathIndex   = hardenedOffset - 1

	purposeBIP44 = 44
	coinTypeSOL  = 501

	pathDepth = 5
)

// PathComponents is a five-level BIP-44 derivation path
// (purpose/coinType/account/change/addressIndex). Every level derives
// hardened; the textual form may leave the last two levels unmarked.
type PathComponents struct {
	Purpose      uint32 `json:"purpose"`
	CoinType     uint32 `json:"coinType"`
	Account      uint32 `json:"account"`
	Change       uint32 `json:"change"`
	AddressIndex uint32 `json:"addressIndex"`
}

// DefaultPath is the canonical Solana account path m/44'/501'/0'/0'/0'.
func DefaultPath() PathComponents {
	return SolanaPath(0, 0, 0)
}

// SolanaPath builds m/44'/501'/account'/change'/addressIndex'.
func SolanaPath(account, change, addressIndex uint32) PathComponents {
	return PathComponents{
		Purpose:      purposeBIP44,
		CoinType:     coinTypeSOL,
		Account:      account,
		Change:       change,
		AddressIndex: addressIndex,
	}
}

func (p PathComponents) indices() [pathDepth]uint32 {
	return [pathDepth]uint32{p.Purpose, p.CoinType, p.Account, p.Change, p.AddressIndex}
}

// String formats the path with every level marked hardened, so
// ParsePath(p.String()) always round-trips to p.
func (p PathComponents) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, c := range p.indices() {
		fmt.Fprintf(&b, "/%d'", c)
	}
	return b.String()
}

// ParsePath parses a five-level BIP-32 style path string. Apostrophe and
// "h" hardened markers are both accepted. The first three levels must be
// marked; the change and addressIndex levels may appear unmarked and are
// normalized to hardened.
func ParsePath(s string) (PathComponents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PathComponents{}, errs.E(errs.InvalidDerivationPath, "derivation path is empty", nil)
	}

	parts := strings.Split(s, "/")
	if !strings.EqualFold(parts[0], "m") {
		return PathComponents{}, errs.Ef(errs.InvalidDerivationPath, "derivation path must start with m, got %q", parts[0])
	}
	if len(parts)-1 != pathDepth {
		return PathComponents{}, errs.Ef(errs.InvalidDerivationPath, "derivation path must have %d levels, got %d", pathDepth, len(parts)-1)
	}

	var indices [pathDepth]uint32
	for i, part := range parts[1:] {
		index, hardened, err := parseComponent(part)
		if err != nil {
			return PathComponents{}, err
		}
		// Only change and addressIndex tolerate the unmarked form.
		if !hardened && i < pathDepth-2 {
			return PathComponents{}, errs.Ef(errs.InvalidDerivationPath, "component %q must be hardened", part)
		}
		indices[i] = index
	}

	return PathComponents{
		Purpose:      indices[0],
		CoinType:     indices[1],
		Account:      indices[2],
		Change:       indices[3],
		AddressIndex: indices[4],
	}, nil
}

func parseComponent(part string) (uint32, bool, error) {
	if part == "" {
		return 0, false, errs.E(errs.InvalidDerivationPath, "empty path component", nil)
	}

	hardened := false
	switch {
	case strings.HasSuffix(part, "'"):
		hardened = true
		part = strings.TrimSuffix(part, "'")
	case strings.HasSuffix(part, "h"), strings.HasSuffix(part, "H"):
		hardened = true
		part = part[:len(part)-1]
	}

	index, err := strconv.ParseUint(part, 10, 32)
	if err != nil {
		return 0, false, errs.Ef(errs.InvalidDerivationPath, "component %q is not a number", part)
	}
	if uint32(index) > maxPathIndex {
		return 0, false, errs.Ef(errs.InvalidDerivationPath, "component %d exceeds hardened index range", index)
	}
	return uint32(index), hardened, nil
}

// ValidateSolanaPath enforces the Solana registered-coin profile:
// purpose 44', coin type 501', all indices within [0, 2^31-1].
func ValidateSolanaPath(p PathComponents) error {
	if p.Purpose != purposeBIP44 {
		return errs.Ef(errs.InvalidDerivationPath, "purpose must be %d', got %d'", purposeBIP44, p.Purpose)
	}
	if p.CoinType != coinTypeSOL {
		return errs.Ef(errs.InvalidDerivationPath, "coin type must be %d', got %d'", coinTypeSOL, p.CoinType)
	}
	for _, index := range p.indices() {
		if index > maxPathIndex {
			return errs.Ef(errs.InvalidDerivationPath, "component %d exceeds hardened index range", index)
		}
	}
	return nil
}

// ParseSolanaPath parses and validates a Solana derivation path, returning
// the default path for an empty string.
func ParseSolanaPath(s string) (PathComponents, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultPath(), nil
	}
	p, err := ParsePath(s)
	if err != nil {
		return PathComponents{}, err
	}
	if err := ValidateSolanaPath(p); err != nil {
		return PathComponents{}, err
	}
	return p, nil
}
