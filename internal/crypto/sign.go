package crypto

import (
	"crypto/ed25519"

	"github.com/gagliardetto/solana-go"

	"github.com/akarpov/svsim/internal/errs"
)

// Sign signs payload with a wallet's ed25519 private key.
func Sign(priv solana.PrivateKey, payload []byte) (solana.Signature, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return solana.Signature{}, errs.Ef(errs.SigningFailed, "private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	sig, err := priv.Sign(payload)
	if err != nil {
		return solana.Signature{}, errs.E(errs.SigningFailed, "failed to sign payload", err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature of payload by pub.
func Verify(pub solana.PublicKey, payload []byte, sig solana.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), payload, sig[:])
}
