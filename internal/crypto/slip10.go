package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

// slip10MasterKey is the SLIP-0010 curve constant for ed25519.
var slip10MasterKey = []byte("ed25519 seed")

type extendedKey struct {
	key       []byte // 32 bytes
	chainCode []byte // 32 bytes
}

func masterKeyFromSeed(seed []byte) extendedKey {
	mac := hmac.New(sha512.New, slip10MasterKey)
	mac.Write(seed)
	sum := mac.Sum(nil)
	return extendedKey{key: sum[:32], chainCode: sum[32:]}
}

// deriveChild performs the SLIP-0010 hardened-child step. ed25519 has no
// normal derivation, so the hardened bit is always set.
func (k extendedKey) deriveChild(index uint32) extendedKey {
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, k.key...)
	data = binary.BigEndian.AppendUint32(data, index|hardenedOffset)

	mac := hmac.New(sha512.New, k.chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return extendedKey{key: sum[:32], chainCode: sum[32:]}
}

// DeriveKeypair derives an ed25519 keypair from a BIP-39 seed at the given
// path, hardening every level. Identical seed and path always produce the
// identical keypair.
func DeriveKeypair(seed []byte, path PathComponents) (model.Keypair, error) {
	if len(seed) == 0 {
		return model.Keypair{}, errs.E(errs.InvalidMnemonic, "seed is empty", nil)
	}

	k := masterKeyFromSeed(seed)
	for _, index := range path.indices() {
		k = k.deriveChild(index)
	}

	priv := solana.PrivateKey(ed25519.NewKeyFromSeed(k.key))
	clear(k.key)
	clear(k.chainCode)

	return model.Keypair{
		PublicKey:  priv.PublicKey(),
		PrivateKey: priv,
	}, nil
}
