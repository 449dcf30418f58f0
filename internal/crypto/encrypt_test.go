package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	password := []byte("pw1234")
	plaintext := []byte("attack at dawn")

	blob, err := Encrypt(plaintext, password)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	got, err := Decrypt(blob, password)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestEncryptProducesUniqueEnvelopes(t *testing.T) {
	password := []byte("pw1234")
	a, err := Encrypt([]byte("same plaintext"), password)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same plaintext"), password)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := Encrypt([]byte("secret"), []byte("correct horse"))
	require.NoError(t, err)

	_, err = Decrypt(blob, []byte("wrong horse"))
	require.Error(t, err)
	require.Equal(t, errs.DecryptionFailed, errs.CodeOf(err))
}

func TestDecryptTamperedEnvelope(t *testing.T) {
	password := []byte("pw1234")
	blob, err := Encrypt([]byte("secret"), password)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(string(blob))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	tampered := model.EncryptedBlob(base64.StdEncoding.EncodeToString(raw))

	_, err = Decrypt(tampered, password)
	require.Error(t, err)
	require.Equal(t, errs.DecryptionFailed, errs.CodeOf(err))
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	for _, blob := range []model.EncryptedBlob{"", "!!!not-base64!!!", "c2hvcnQ="} {
		_, err := Decrypt(blob, []byte("pw1234"))
		require.Error(t, err, "blob %q", blob)
		require.Equal(t, errs.DecryptionFailed, errs.CodeOf(err), "blob %q", blob)
	}
}

func TestKeyMaterialRoundTrip(t *testing.T) {
	seed := testSeed(t)
	kp, err := DeriveKeypair(seed, DefaultPath())
	require.NoError(t, err)

	km := &model.KeyMaterial{
		Mnemonic:  testMnemonic,
		SecretKey: kp.PrivateKey,
	}
	password := []byte("pw1234")

	blob, err := EncryptKeyMaterial(km, password)
	require.NoError(t, err)

	got, err := DecryptKeyMaterial(blob, password)
	require.NoError(t, err)
	require.Equal(t, testMnemonic, got.Mnemonic)
	require.Equal(t, []byte(kp.PrivateKey), got.SecretKey)
}

func TestEncryptDecryptPlaintextShapes(t *testing.T) {
	password := []byte("pw1234")
	for _, plaintext := range [][]byte{
		{},
		[]byte("ascii"),
		[]byte("ünïcödé ⊕ ключ 鍵"),
		make([]byte, 4096),
	} {
		blob, err := Encrypt(plaintext, password)
		require.NoError(t, err)
		got, err := Decrypt(blob, password)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, plaintext, got)
	}
}
