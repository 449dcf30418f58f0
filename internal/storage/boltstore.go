package storage

import (
	"context"
	"encoding/json"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

var (
	walletsBucket = []byte("wallets")
	metaBucket    = []byte("meta")

	configKey = []byte("config")
	lockedKey = []byte("locked")
)

// BoltStore keeps all vault documents in a single bbolt file with one
// bucket for wallets and one for metadata.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the database file and its buckets.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errs.E(errs.StorageError, "failed to open database", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{walletsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errs.E(errs.StorageError, "failed to create buckets", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveWallet(_ context.Context, w *model.Wallet) error {
	data, err := json.Marshal(w)
	if err != nil {
		return errs.E(errs.StorageError, "failed to marshal wallet", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(walletsBucket).Put([]byte(w.ID), data)
	})
	if err != nil {
		return errs.E(errs.StorageError, "failed to save wallet", err)
	}
	return nil
}

func (s *BoltStore) LoadWallet(_ context.Context, id string) (*model.Wallet, error) {
	var w *model.Wallet
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(walletsBucket).Get([]byte(id))
		if data == nil {
			return errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
		}
		w = &model.Wallet{}
		return json.Unmarshal(data, w)
	})
	if err != nil {
		if errs.Is(err, errs.WalletNotFound) {
			return nil, err
		}
		return nil, errs.E(errs.StorageError, "failed to load wallet", err)
	}
	return w, nil
}

func (s *BoltStore) ListWallets(_ context.Context) ([]*model.Wallet, error) {
	var wallets []*model.Wallet
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(walletsBucket).ForEach(func(_, data []byte) error {
			w := &model.Wallet{}
			if err := json.Unmarshal(data, w); err != nil {
				return err
			}
			wallets = append(wallets, w)
			return nil
		})
	})
	if err != nil {
		return nil, errs.E(errs.StorageError, "failed to list wallets", err)
	}
	sortWallets(wallets)
	return wallets, nil
}

func (s *BoltStore) DeleteWallet(_ context.Context, id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(walletsBucket)
		if b.Get([]byte(id)) == nil {
			return errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		if errs.Is(err, errs.WalletNotFound) {
			return err
		}
		return errs.E(errs.StorageError, "failed to delete wallet", err)
	}
	return nil
}

func (s *BoltStore) SaveConfig(_ context.Context, cfg *model.VaultConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return errs.E(errs.StorageError, "failed to marshal config", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(configKey, data)
	})
	if err != nil {
		return errs.E(errs.StorageError, "failed to save config", err)
	}
	return nil
}

func (s *BoltStore) LoadConfig(_ context.Context) (*model.VaultConfig, error) {
	var cfg *model.VaultConfig
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metaBucket).Get(configKey)
		if data == nil {
			return nil
		}
		cfg = &model.VaultConfig{}
		return json.Unmarshal(data, cfg)
	})
	if err != nil {
		return nil, errs.E(errs.StorageError, "failed to load config", err)
	}
	return cfg, nil
}

func (s *BoltStore) SetLocked(_ context.Context, locked bool) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if locked {
			return b.Put(lockedKey, []byte{1})
		}
		return b.Delete(lockedKey)
	})
	if err != nil {
		return errs.E(errs.StorageError, "failed to update lock marker", err)
	}
	return nil
}

func (s *BoltStore) IsLocked(_ context.Context) (bool, error) {
	var locked bool
	err := s.db.View(func(tx *bolt.Tx) error {
		locked = tx.Bucket(metaBucket).Get(lockedKey) != nil
		return nil
	})
	if err != nil {
		return false, errs.E(errs.StorageError, "failed to read lock marker", err)
	}
	return locked, nil
}

func (s *BoltStore) Exists(_ context.Context) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(metaBucket).Get(configKey) != nil {
			exists = true
			return nil
		}
		exists = tx.Bucket(walletsBucket).Stats().KeyN > 0
		return nil
	})
	if err != nil {
		return false, errs.E(errs.StorageError, "failed to check storage", err)
	}
	return exists, nil
}

func (s *BoltStore) Clear(_ context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{walletsBucket, metaBucket} {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.E(errs.StorageError, "failed to clear storage", err)
	}
	return nil
}

func (s *BoltStore) Stats(_ context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.db.View(func(tx *bolt.Tx) error {
		stats.WalletCount = tx.Bucket(walletsBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return nil, errs.E(errs.StorageError, "failed to collect stats", err)
	}
	if info, err := os.Stat(s.db.Path()); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

func (s *BoltStore) Backup(ctx context.Context) ([]byte, error) {
	wallets, err := s.ListWallets(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	locked, err := s.IsLocked(ctx)
	if err != nil {
		return nil, err
	}
	return marshalSnapshot(wallets, cfg, locked)
}

func (s *BoltStore) Restore(ctx context.Context, data []byte) error {
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

func (s *BoltStore) Close() error {
	return s.db.Close()
}
