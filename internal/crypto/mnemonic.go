package crypto

import (
	"github.com/tyler-smith/go-bip39"

	"github.com/akarpov/svsim/internal/errs"
)

// GenerateMnemonic creates a new BIP-39 mnemonic from fresh entropy.
// Strength is the entropy size in bits and must be one of 128, 160, 192,
// 224 or 256, yielding 12 to 24 words.
func GenerateMnemonic(strength int) (string, error) {
	switch strength {
	case 128, 160, 192, 224, 256:
	default:
		return "", errs.Ef(errs.InvalidMnemonic, "strength must be 128, 160, 192, 224 or 256 bits, got %d", strength)
	}

	entropy, err := bip39.NewEntropy(strength)
	if err != nil {
		return "", errs.E(errs.InvalidMnemonic, "failed to generate entropy", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errs.E(errs.InvalidMnemonic, "failed to build mnemonic", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks BIP-39 word count, word list membership and
// checksum.
func ValidateMnemonic(mnemonic string) error {
	if !bip39.IsMnemonicValid(mnemonic) {
		return errs.E(errs.InvalidMnemonic, "mnemonic failed checksum or word list validation", nil)
	}
	return nil
}

// SeedFromMnemonic derives the 64-byte BIP-39 seed. The passphrase is the
// optional BIP-39 extension word, not the vault password.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, errs.E(errs.InvalidMnemonic, "failed to derive seed", err)
	}
	return seed, nil
}
