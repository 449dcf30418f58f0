package storage

import (
	"context"
	"sync"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

// MemStore is an in-memory Store for tests and throwaway runs.
type MemStore struct {
	mu      sync.Mutex
	wallets map[string]*model.Wallet
	cfg     *model.VaultConfig
	locked  bool
}

func NewMemStore() *MemStore {
	return &MemStore{wallets: make(map[string]*model.Wallet)}
}

func (s *MemStore) SaveWallet(_ context.Context, w *model.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.ID] = w.Clone()
	return nil
}

func (s *MemStore) LoadWallet(_ context.Context, id string) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
	}
	return w.Clone(), nil
}

func (s *MemStore) ListWallets(_ context.Context) ([]*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallets := make([]*model.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		wallets = append(wallets, w.Clone())
	}
	sortWallets(wallets)
	return wallets, nil
}

func (s *MemStore) DeleteWallet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[id]; !ok {
		return errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
	}
	delete(s.wallets, id)
	return nil
}

func (s *MemStore) SaveConfig(_ context.Context, cfg *model.VaultConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.cfg = &cp
	return nil
}

func (s *MemStore) LoadConfig(_ context.Context) (*model.VaultConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil, nil
	}
	cp := *s.cfg
	return &cp, nil
}

func (s *MemStore) SetLocked(_ context.Context, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = locked
	return nil
}

func (s *MemStore) IsLocked(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked, nil
}

func (s *MemStore) Exists(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg != nil || len(s.wallets) > 0, nil
}

func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = make(map[string]*model.Wallet)
	s.cfg = nil
	s.locked = false
	return nil
}

func (s *MemStore) Stats(ctx context.Context) (*Stats, error) {
	snapshot, err := s.Backup(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Stats{WalletCount: len(s.wallets), SizeBytes: int64(len(snapshot))}, nil
}

func (s *MemStore) Backup(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallets := make([]*model.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		wallets = append(wallets, w.Clone())
	}
	sortWallets(wallets)
	return marshalSnapshot(wallets, s.cfg, s.locked)
}

func (s *MemStore) Restore(ctx context.Context, data []byte) error {
	snap, err := unmarshalSnapshot(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = make(map[string]*model.Wallet, len(snap.Wallets))
	for _, w := range snap.Wallets {
		s.wallets[w.ID] = w
	}
	s.cfg = snap.Config
	s.locked = snap.Locked
	return nil
}

func (s *MemStore) Close() error {
	return nil
}
