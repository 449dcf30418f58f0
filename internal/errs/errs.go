// Package errs defines the stable error taxonomy shared by the vault, the
// wallet-adapter protocol service, and their collaborators. Callers branch on
// Code via errors.As/Is rather than matching message strings.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a kind of error. Codes are stable across versions and are
// returned verbatim in API error envelopes.
type Code string

const (
	// VaultNotInitialized indicates an operation that requires a prior
	// successful Initialize call.
	VaultNotInitialized Code = "VAULT_NOT_INITIALIZED"

	// VaultLocked indicates the vault rejected an operation because it is
	// locked. Only initialize, unlock and status are available while locked.
	VaultLocked Code = "VAULT_LOCKED"

	// InvalidMnemonic indicates a mnemonic that failed word-list, word-count
	// or checksum validation, or an unsupported entropy strength.
	InvalidMnemonic Code = "INVALID_MNEMONIC"

	// InvalidDerivationPath indicates a path that is not a valid hardened
	// BIP-44 path for the Solana coin type.
	InvalidDerivationPath Code = "INVALID_DERIVATION_PATH"

	// InvalidPassword indicates a password below the minimal length gate.
	InvalidPassword Code = "INVALID_PASSWORD"

	// WalletNotFound indicates the referenced wallet id is unknown.
	WalletNotFound Code = "WALLET_NOT_FOUND"

	// DuplicateWallet indicates an import whose public key is already held
	// by another wallet record.
	DuplicateWallet Code = "DUPLICATE_WALLET"

	// EncryptionFailed indicates the key-material envelope could not be
	// produced.
	EncryptionFailed Code = "ENCRYPTION_FAILED"

	// DecryptionFailed indicates a wrong password or a corrupted envelope.
	DecryptionFailed Code = "DECRYPTION_FAILED"

	// InvalidTransaction indicates a transaction that failed structural
	// validation before reaching the signing pipeline.
	InvalidTransaction Code = "INVALID_TRANSACTION"

	// SigningFailed indicates the vault could not produce a signature,
	// including the stored-key/derived-key mismatch defense.
	SigningFailed Code = "SIGNING_FAILED"

	// StorageError indicates a failure in the persistence collaborator.
	StorageError Code = "STORAGE_ERROR"

	// InvalidRequest indicates a structurally bad protocol call, such as a
	// blank dApp identifier or an empty signing batch.
	InvalidRequest Code = "INVALID_REQUEST"

	// SessionNotFound indicates an unknown or already-disconnected session.
	SessionNotFound Code = "SESSION_NOT_FOUND"

	// SessionNotAuthorized indicates a signing call on a session that has
	// not completed authorize.
	SessionNotAuthorized Code = "SESSION_NOT_AUTHORIZED"

	// NoWalletsAvailable indicates authorize found no wallet to bind.
	NoWalletsAvailable Code = "NO_WALLETS_AVAILABLE"

	// RequestNotFound indicates an unknown pending approval or confirmation
	// request id.
	RequestNotFound Code = "REQUEST_NOT_FOUND"

	// TransactionNotFound indicates an unknown tracker entry id.
	TransactionNotFound Code = "TRANSACTION_NOT_FOUND"

	// InvalidTransition indicates a tracker status update that does not
	// advance forward through the lifecycle graph.
	InvalidTransition Code = "INVALID_TRANSITION"

	// TransactionValidationFailed indicates a per-item validation failure
	// inside a signing batch.
	TransactionValidationFailed Code = "TRANSACTION_VALIDATION_FAILED"

	// TransactionRejected indicates the approval gate (simulated or manual)
	// declined the item.
	TransactionRejected Code = "TRANSACTION_REJECTED"
)

// Error carries a stable code, a human-readable description, free-form
// context and an optional underlying cause. Messages may evolve; codes and
// context keys are the programmatic surface.
type Error struct {
	Code        Code
	Description string
	Context     map[string]any
	Err         error
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an Error from a code, a description and an optional cause.
func E(code Code, description string, err error) *Error {
	return &Error{Code: code, Description: description, Err: err}
}

// Ef builds an Error with a formatted description and no cause.
func Ef(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// With attaches one context key/value pair and returns the same error for
// chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, 1)
	}
	e.Context[key] = value
	return e
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or returns the empty string for errors
// outside the taxonomy.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
