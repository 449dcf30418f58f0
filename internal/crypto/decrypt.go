package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"golang.org/x/crypto/pbkdf2"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

// Decrypt opens an envelope produced by Encrypt. A wrong password and a
// corrupted envelope are indistinguishable; both fail decryption.
// password must be []byte for security (caller should zero it after use).
func Decrypt(blob model.EncryptedBlob, password []byte) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(string(blob))
	if err != nil {
		return nil, errs.E(errs.DecryptionFailed, "malformed envelope encoding", err)
	}
	if len(envelope) < saltLen+nonceLen {
		return nil, errs.E(errs.DecryptionFailed, "envelope too short", nil)
	}

	salt := envelope[:saltLen]
	nonce := envelope[saltLen : saltLen+nonceLen]
	ciphertext := envelope[saltLen+nonceLen:]

	key := pbkdf2.Key(password, salt, pbkdf2Iterations, keyLen, sha256.New)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.E(errs.DecryptionFailed, "failed to create cipher", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.E(errs.DecryptionFailed, "failed to create GCM", err)
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errs.E(errs.DecryptionFailed, "invalid password or corrupted data", nil)
	}
	if plaintext == nil {
		// Open returns nil for an empty plaintext; keep the round trip
		// exact for callers comparing byte slices.
		plaintext = []byte{}
	}
	return plaintext, nil
}

// DecryptKeyMaterial opens a wallet's key material envelope. The caller owns
// the returned secret bytes and should zero them after use.
func DecryptKeyMaterial(blob model.EncryptedBlob, password []byte) (*model.KeyMaterial, error) {
	plaintext, err := Decrypt(blob, password)
	if err != nil {
		return nil, err
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	var km model.KeyMaterial
	if err := json.Unmarshal(plaintext, &km); err != nil {
		return nil, errs.E(errs.DecryptionFailed, "failed to unmarshal key material", err)
	}
	return &km, nil
}
