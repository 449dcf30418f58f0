package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

const (
	walletsDirName = "wallets"
	configFileName = "config.json"
	lockMarkerName = ".locked"
	walletFileExt  = ".json"
)

// FileStore keeps each wallet as <dir>/wallets/<id>.json next to a config
// document and an empty lock-marker file.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the directory layout if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errs.E(errs.StorageError, "storage directory is empty", nil)
	}
	if err := os.MkdirAll(filepath.Join(dir, walletsDirName), 0o700); err != nil {
		return nil, errs.E(errs.StorageError, "failed to create storage directory", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) walletPath(id string) string {
	return filepath.Join(s.dir, walletsDirName, id+walletFileExt)
}

func (s *FileStore) configPath() string {
	return filepath.Join(s.dir, configFileName)
}

func (s *FileStore) lockPath() string {
	return filepath.Join(s.dir, lockMarkerName)
}

// writeFileAtomic writes via a temp file and rename so a crash never leaves
// a half-written document behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

func (s *FileStore) SaveWallet(_ context.Context, w *model.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return errs.E(errs.StorageError, "failed to marshal wallet", err)
	}
	if err := writeFileAtomic(s.walletPath(w.ID), data); err != nil {
		return errs.E(errs.StorageError, "failed to save wallet", err)
	}
	return nil
}

func (s *FileStore) LoadWallet(_ context.Context, id string) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadWalletLocked(id)
}

func (s *FileStore) loadWalletLocked(id string) (*model.Wallet, error) {
	data, err := os.ReadFile(s.walletPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
		}
		return nil, errs.E(errs.StorageError, "failed to read wallet", err)
	}
	var w model.Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.E(errs.StorageError, "failed to unmarshal wallet", err)
	}
	return &w, nil
}

func (s *FileStore) ListWallets(_ context.Context) ([]*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listWalletsLocked()
}

func (s *FileStore) listWalletsLocked() ([]*model.Wallet, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, walletsDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.E(errs.StorageError, "failed to list wallets", err)
	}

	wallets := make([]*model.Wallet, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, walletFileExt) {
			continue
		}
		w, err := s.loadWalletLocked(strings.TrimSuffix(name, walletFileExt))
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	sortWallets(wallets)
	return wallets, nil
}

func (s *FileStore) DeleteWallet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.walletPath(id)); err != nil {
		if os.IsNotExist(err) {
			return errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
		}
		return errs.E(errs.StorageError, "failed to delete wallet", err)
	}
	return nil
}

func (s *FileStore) SaveConfig(_ context.Context, cfg *model.VaultConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errs.E(errs.StorageError, "failed to marshal config", err)
	}
	if err := writeFileAtomic(s.configPath(), data); err != nil {
		return errs.E(errs.StorageError, "failed to save config", err)
	}
	return nil
}

func (s *FileStore) LoadConfig(_ context.Context) (*model.VaultConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.E(errs.StorageError, "failed to read config", err)
	}
	var cfg model.VaultConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errs.E(errs.StorageError, "failed to unmarshal config", err)
	}
	return &cfg, nil
}

func (s *FileStore) SetLocked(_ context.Context, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if locked {
		if err := os.WriteFile(s.lockPath(), nil, 0o600); err != nil {
			return errs.E(errs.StorageError, "failed to write lock marker", err)
		}
		return nil
	}
	if err := os.Remove(s.lockPath()); err != nil && !os.IsNotExist(err) {
		return errs.E(errs.StorageError, "failed to remove lock marker", err)
	}
	return nil
}

func (s *FileStore) IsLocked(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.lockPath()); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errs.E(errs.StorageError, "failed to stat lock marker", err)
	}
	return true, nil
}

func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.configPath()); err == nil {
		return true, nil
	}
	wallets, err := s.listWalletsLocked()
	if err != nil {
		return false, err
	}
	return len(wallets) > 0, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.dir, walletsDirName)); err != nil {
		return errs.E(errs.StorageError, "failed to clear wallets", err)
	}
	if err := os.MkdirAll(filepath.Join(s.dir, walletsDirName), 0o700); err != nil {
		return errs.E(errs.StorageError, "failed to recreate wallets directory", err)
	}
	for _, path := range []string{s.configPath(), s.lockPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errs.E(errs.StorageError, "failed to clear storage", err)
		}
	}
	return nil
}

func (s *FileStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{}
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		stats.SizeBytes += info.Size()
		if strings.HasSuffix(path, walletFileExt) && filepath.Base(filepath.Dir(path)) == walletsDirName {
			stats.WalletCount++
		}
		return nil
	})
	if err != nil {
		return nil, errs.E(errs.StorageError, "failed to collect stats", err)
	}
	return stats, nil
}

func (s *FileStore) Backup(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, err := s.listWalletsLocked()
	if err != nil {
		return nil, err
	}

	var cfg *model.VaultConfig
	if data, err := os.ReadFile(s.configPath()); err == nil {
		cfg = &model.VaultConfig{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errs.E(errs.StorageError, "failed to unmarshal config", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, errs.E(errs.StorageError, "failed to read config", err)
	}

	_, lockErr := os.Stat(s.lockPath())
	return marshalSnapshot(wallets, cfg, lockErr == nil)
}

func (s *FileStore) Restore(ctx context.Context, data []byte) error {
	snap, err := unmarshalSnapshot(data)
	if err != nil {
		return err
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}
	for _, w := range snap.Wallets {
		if err := s.SaveWallet(ctx, w); err != nil {
			return err
		}
	}
	if snap.Config != nil {
		if err := s.SaveConfig(ctx, snap.Config); err != nil {
			return err
		}
	}
	return s.SetLocked(ctx, snap.Locked)
}

func (s *FileStore) Close() error {
	return nil
}

func sortWallets(wallets []*model.Wallet) {
	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].CreatedAt.Equal(wallets[j].CreatedAt) {
			return wallets[i].ID < wallets[j].ID
		}
		return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
	})
}
