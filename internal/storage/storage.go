// Package storage persists vault documents. Wallets are stored one document
// per id, dates as ISO-8601 strings and public keys as canonical base58
// text, so any backend satisfying Store is interchangeable.
package storage

import (
	"context"
	"encoding/json"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

// Store is the persistence contract consumed by the vault. Implementations
// must be safe for concurrent use.
type Store interface {
	SaveWallet(ctx context.Context, w *model.Wallet) error
	// LoadWallet fails WalletNotFound for an unknown id.
	LoadWallet(ctx context.Context, id string) (*model.Wallet, error)
	// ListWallets returns wallets ordered by creation time, oldest first.
	ListWallets(ctx context.Context) ([]*model.Wallet, error)
	// DeleteWallet fails WalletNotFound for an unknown id.
	DeleteWallet(ctx context.Context, id string) error

	SaveConfig(ctx context.Context, cfg *model.VaultConfig) error
	// LoadConfig returns (nil, nil) when no config has been saved.
	LoadConfig(ctx context.Context) (*model.VaultConfig, error)

	// SetLocked persists or removes the lock marker.
	SetLocked(ctx context.Context, locked bool) error
	IsLocked(ctx context.Context) (bool, error)

	// Exists reports whether any vault data is present.
	Exists(ctx context.Context) (bool, error)
	// Clear removes all wallets, config and the lock marker.
	Clear(ctx context.Context) error

	Stats(ctx context.Context) (*Stats, error)

	// Backup serializes the whole store into one snapshot; Restore
	// replaces the store's contents with a snapshot, regardless of which
	// backend produced it.
	Backup(ctx context.Context) ([]byte, error)
	Restore(ctx context.Context, snapshot []byte) error

	Close() error
}

// Stats is the basic usage report of a store.
type Stats struct {
	WalletCount int   `json:"walletCount"`
	SizeBytes   int64 `json:"sizeBytes"`
}

// snapshot is the backend-agnostic backup document.
type snapshot struct {
	Wallets []*model.Wallet    `json:"wallets"`
	Config  *model.VaultConfig `json:"config,omitempty"`
	Locked  bool               `json:"locked"`
}

func marshalSnapshot(wallets []*model.Wallet, cfg *model.VaultConfig, locked bool) ([]byte, error) {
	data, err := json.Marshal(snapshot{Wallets: wallets, Config: cfg, Locked: locked})
	if err != nil {
		return nil, errs.E(errs.StorageError, "failed to marshal snapshot", err)
	}
	return data, nil
}

func unmarshalSnapshot(data []byte) (*snapshot, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errs.E(errs.StorageError, "failed to unmarshal snapshot", err)
	}
	return &snap, nil
}
