package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := E(VaultLocked, "vault is locked", nil)
	require.Equal(t, "vault is locked", e.Error())

	cause := errors.New("disk full")
	e = E(StorageError, "failed to save wallet", cause)
	require.Equal(t, "failed to save wallet: disk full", e.Error())
	require.ErrorIs(t, e, cause)
}

func TestCodeOfWrappedChain(t *testing.T) {
	inner := E(DecryptionFailed, "wrong password", nil)
	wrapped := fmt.Errorf("failed to export wallet: %w", inner)

	require.Equal(t, DecryptionFailed, CodeOf(wrapped))
	require.True(t, Is(wrapped, DecryptionFailed))
	require.False(t, Is(wrapped, VaultLocked))
}

func TestCodeOfForeignError(t *testing.T) {
	require.Equal(t, Code(""), CodeOf(errors.New("plain")))
	require.Equal(t, Code(""), CodeOf(nil))
}

func TestWithContext(t *testing.T) {
	e := Ef(WalletNotFound, "no wallet with id %q", "ab12").
		With("walletId", "ab12").
		With("operation", "export")

	require.Equal(t, "ab12", e.Context["walletId"])
	require.Equal(t, "export", e.Context["operation"])
	require.Equal(t, `no wallet with id "ab12"`, e.Description)
}
