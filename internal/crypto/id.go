package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/akarpov/svsim/internal/errs"
)

const walletIDLen = 16 // hex chars

// GenerateWalletID returns a random 16-hex-char wallet id for freshly
// generated wallets.
func GenerateWalletID() (string, error) {
	var buf [32]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", errs.E(errs.EncryptionFailed, "failed to read entropy for wallet id", err)
	}
	sum := sha256.Sum256(buf[:])
	return hex.EncodeToString(sum[:])[:walletIDLen], nil
}

// DeterministicWalletID derives the 16-hex-char id of an imported wallet
// from its public key, so re-importing the same mnemonic and path always
// yields the same id.
func DeterministicWalletID(pub solana.PublicKey) string {
	sum := sha256.Sum256(pub.Bytes())
	return hex.EncodeToString(sum[:])[:walletIDLen]
}

// NewID returns a random unique id for sessions and tracked requests.
func NewID() string {
	return uuid.NewString()
}
