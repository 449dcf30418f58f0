package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

const (
	// PBKDF2-SHA256 parameters for the vault password KDF. The envelope
	// layout is base64(salt ‖ nonce ‖ ciphertext) with AES-256-GCM.
	pbkdf2Iterations = 100_000
	keyLen           = 32
	saltLen          = 32
	nonceLen         = 12
)

// Encrypt seals plaintext under a password-derived key and returns the
// opaque envelope. password must be []byte for security (caller should zero
// it after use).
func Encrypt(plaintext, password []byte) (model.EncryptedBlob, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", errs.E(errs.EncryptionFailed, "failed to generate salt", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errs.E(errs.EncryptionFailed, "failed to generate nonce", err)
	}

	key := pbkdf2.Key(password, salt, pbkdf2Iterations, keyLen, sha256.New)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errs.E(errs.EncryptionFailed, "failed to create cipher", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", errs.E(errs.EncryptionFailed, "failed to create GCM", err)
	}

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	envelope := make([]byte, 0, saltLen+nonceLen+len(ciphertext))
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)

	return model.EncryptedBlob(base64.StdEncoding.EncodeToString(envelope)), nil
}

// EncryptKeyMaterial seals a wallet's key material. The intermediate
// plaintext is wiped before returning.
func EncryptKeyMaterial(km *model.KeyMaterial, password []byte) (model.EncryptedBlob, error) {
	plaintext, err := json.Marshal(km)
	if err != nil {
		return "", errs.E(errs.EncryptionFailed, "failed to marshal key material", err)
	}
	defer clear(plaintext) // wipe plaintext bytes from memory

	return Encrypt(plaintext, password)
}
