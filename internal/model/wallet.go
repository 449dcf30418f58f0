package model

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// WalletProfile is the immutable input descriptor for creating or importing
// a wallet. Mnemonic is input-only and is never serialized; it travels to
// storage inside the encrypted key envelope instead.
type WalletProfile struct {
	Name           string `json:"name"`
	Mnemonic       string `json:"-"`
	DerivationPath string `json:"derivationPath"`
	Network        string `json:"network"`
}

// EncryptedBlob is an opaque base64(salt ‖ nonce ‖ ciphertext) envelope
// produced by the crypto engine.
type EncryptedBlob string

// KeyMaterial is the plaintext protected by a wallet's EncryptedBlob.
// SecretKey holds the full 64-byte ed25519 private key.
type KeyMaterial struct {
	Mnemonic  string `json:"mnemonic"`
	SecretKey []byte `json:"secretKey"`
}

// Wallet is a vault-owned wallet record. Only the vault mutates LastUsed.
type Wallet struct {
	ID           string           `json:"id"`
	Profile      WalletProfile    `json:"profile"`
	PublicKey    solana.PublicKey `json:"publicKey"`
	EncryptedKey EncryptedBlob    `json:"encryptedKey"`
	AddressQR    string           `json:"addressQR,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	LastUsed     time.Time        `json:"lastUsed"`
}

// Clone returns an independent copy safe to hand outside the vault.
func (w *Wallet) Clone() *Wallet {
	cp := *w
	return &cp
}

// ExportedWallet is the decrypted view returned by the vault's export
// operation.
type ExportedWallet struct {
	Profile   WalletProfile    `json:"profile"`
	Mnemonic  string           `json:"mnemonic"`
	PublicKey solana.PublicKey `json:"publicKey"`
	AddressQR string           `json:"addressQR,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Keypair pairs a derived public key with its private key. Callers should
// zero the private key once done with it.
type Keypair struct {
	PublicKey  solana.PublicKey
	PrivateKey solana.PrivateKey
}

// Zero wipes the private key bytes.
func (k *Keypair) Zero() {
	clear(k.PrivateKey)
}

// VaultConfig is the persisted vault configuration document.
type VaultConfig struct {
	AutoLockTimeout     time.Duration `json:"autoLockTimeout"`
	ConfirmationTimeout time.Duration `json:"confirmationTimeout"`
	Network             string        `json:"network"`
	CreatedAt           time.Time     `json:"createdAt"`
}

// VaultStatus is the lock-state snapshot available even while locked.
type VaultStatus struct {
	Initialized      bool       `json:"initialized"`
	Locked           bool       `json:"locked"`
	WalletCount      int        `json:"walletCount"`
	LastActivity     *time.Time `json:"lastActivity,omitempty"`
	AutoLockDeadline *time.Time `json:"autoLockDeadline,omitempty"`
}
