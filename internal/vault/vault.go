// Package vault implements the simulated seed vault: multi-wallet custody,
// BIP-44 key derivation, encryption-at-rest and the lock/auto-lock
// lifecycle. One Vault instance exclusively owns its wallet set and lock
// state; every operation besides Initialize, Unlock and Status requires the
// vault to be unlocked.
package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/akarpov/svsim/internal/crypto"
	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/event"
	"github.com/akarpov/svsim/internal/logger"
	"github.com/akarpov/svsim/internal/model"
	"github.com/akarpov/svsim/internal/storage"
)

// Event types emitted by the vault.
const (
	EventInitialized          event.Type = "initialized"
	EventLocked               event.Type = "locked"
	EventUnlocked             event.Type = "unlocked"
	EventWalletGenerated      event.Type = "walletGenerated"
	EventWalletImported       event.Type = "walletImported"
	EventWalletDeleted        event.Type = "walletDeleted"
	EventTransactionSigned    event.Type = "transactionSigned"
	EventMessageSigned        event.Type = "messageSigned"
	EventConfirmationRequired event.Type = "confirmationRequired"
	EventReset                event.Type = "reset"
)

const (
	defaultAutoLockTimeout     = 5 * time.Minute
	defaultConfirmationTimeout = 2 * time.Second
	defaultMnemonicStrength    = 256
	qrSizePixels               = 256
)

// Vault is the seed vault. All methods are safe for concurrent use.
type Vault struct {
	store storage.Store
	log   *zap.Logger

	emitter event.Emitter

	mu               sync.Mutex
	initialized      bool
	locked           bool
	cfg              model.VaultConfig
	password         []byte
	wallets          map[string]*model.Wallet
	lastActivity     time.Time
	autoLockTimer    *time.Timer
	autoLockDeadline time.Time

	confirmMu sync.Mutex
	confirms  map[string]*pendingConfirmation
}

// New builds a vault over the given store. log may be nil. The vault is
// unusable until Initialize.
func New(store storage.Store, log *zap.Logger) *Vault {
	return &Vault{
		store:    store,
		log:      logger.OrNop(log),
		locked:   true,
		wallets:  make(map[string]*model.Wallet),
		confirms: make(map[string]*pendingConfirmation),
	}
}

// Subscribe registers an event listener; the returned func cancels it.
func (v *Vault) Subscribe(fn event.Listener) func() {
	return v.emitter.Subscribe(fn)
}

// Initialize loads persisted wallets and the lock marker, persisting cfg on
// first use. Calling it again is a no-op.
func (v *Vault) Initialize(ctx context.Context, cfg model.VaultConfig) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.initialized {
		return nil
	}

	if cfg.AutoLockTimeout <= 0 {
		cfg.AutoLockTimeout = defaultAutoLockTimeout
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = defaultConfirmationTimeout
	}

	stored, err := v.store.LoadConfig(ctx)
	if err != nil {
		return errs.E(errs.StorageError, "failed to load vault config", err)
	}
	if stored != nil {
		cfg = *stored
	} else {
		cfg.CreatedAt = time.Now()
		if err := v.store.SaveConfig(ctx, &cfg); err != nil {
			return errs.E(errs.StorageError, "failed to save vault config", err)
		}
	}

	wallets, err := v.store.ListWallets(ctx)
	if err != nil {
		return errs.E(errs.StorageError, "failed to load wallets", err)
	}
	for _, w := range wallets {
		v.wallets[w.ID] = w
	}

	// A fresh vault starts locked; a persisted lock marker is restored as
	// locked too. There is no persisted unlocked state.
	v.cfg = cfg
	v.initialized = true
	v.locked = true

	v.log.Info("vault initialized",
		zap.Int("wallets", len(v.wallets)),
		zap.String("network", cfg.Network))
	v.emitter.Emit(EventInitialized, map[string]any{"wallets": len(v.wallets)})
	return nil
}

// Unlock opens the vault with the given password, keeping it in memory for
// the session and starting the auto-lock timer. Unlocking an unlocked vault
// is a no-op.
func (v *Vault) Unlock(ctx context.Context, password []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return errs.E(errs.VaultNotInitialized, "vault is not initialized", nil)
	}
	if !v.locked {
		return nil
	}
	if err := crypto.ValidatePassword(password); err != nil {
		return err
	}

	// Wrong passwords surface later as DecryptionFailed on the first
	// wallet operation; the vault itself stores no password verifier.
	v.password = make([]byte, len(password))
	copy(v.password, password)
	v.locked = false
	v.touchLocked()

	if err := v.store.SetLocked(ctx, false); err != nil {
		v.log.Warn("failed to clear persisted lock marker", zap.Error(err))
	}

	v.log.Info("vault unlocked")
	v.emitter.Emit(EventUnlocked, nil)
	return nil
}

// Lock closes the vault, wiping the session password and cancelling the
// auto-lock timer. Locking a locked vault is a no-op.
func (v *Vault) Lock(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lockLocked(ctx, "explicit")
}

// lockLocked requires v.mu held.
func (v *Vault) lockLocked(ctx context.Context, cause string) error {
	if !v.initialized {
		return errs.E(errs.VaultNotInitialized, "vault is not initialized", nil)
	}
	if v.locked {
		return nil
	}

	clear(v.password)
	v.password = nil
	v.locked = true
	if v.autoLockTimer != nil {
		v.autoLockTimer.Stop()
		v.autoLockTimer = nil
	}
	v.autoLockDeadline = time.Time{}

	if err := v.store.SetLocked(ctx, true); err != nil {
		v.log.Warn("failed to persist lock marker", zap.Error(err))
	}

	v.log.Info("vault locked", zap.String("cause", cause))
	v.emitter.Emit(EventLocked, map[string]any{"cause": cause})
	return nil
}

// autoLock fires from the inactivity timer.
func (v *Vault) autoLock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.locked {
		return
	}
	// A call may have refreshed activity after the timer fired but before
	// it took the lock.
	if time.Now().Before(v.autoLockDeadline) {
		return
	}
	if err := v.lockLocked(context.Background(), "auto-lock"); err != nil {
		v.log.Error("auto-lock failed", zap.Error(err))
	}
}

// touchLocked refreshes activity and re-arms the auto-lock timer. Requires
// v.mu held and the vault unlocked.
func (v *Vault) touchLocked() {
	v.lastActivity = time.Now()
	v.autoLockDeadline = v.lastActivity.Add(v.cfg.AutoLockTimeout)
	if v.autoLockTimer != nil {
		v.autoLockTimer.Stop()
	}
	v.autoLockTimer = time.AfterFunc(v.cfg.AutoLockTimeout, v.autoLock)
}

// checkUnlocked is the standalone form of requireUnlocked for operations
// that do their real work outside the vault mutex.
func (v *Vault) checkUnlocked() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requireUnlocked()
}

// requireUnlocked requires v.mu held.
func (v *Vault) requireUnlocked() error {
	if !v.initialized {
		return errs.E(errs.VaultNotInitialized, "vault is not initialized", nil)
	}
	if v.locked {
		return errs.E(errs.VaultLocked, "vault is locked", nil)
	}
	v.touchLocked()
	return nil
}

// Status reports the lock-state snapshot. Available while locked.
func (v *Vault) Status() model.VaultStatus {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := model.VaultStatus{
		Initialized: v.initialized,
		Locked:      v.locked,
		WalletCount: len(v.wallets),
	}
	if !v.lastActivity.IsZero() {
		la := v.lastActivity
		st.LastActivity = &la
	}
	if !v.locked && !v.autoLockDeadline.IsZero() {
		dl := v.autoLockDeadline
		st.AutoLockDeadline = &dl
	}
	return st
}

// GenerateWallet creates a wallet from profile, generating a fresh mnemonic
// unless the profile supplies one. A supplied mnemonic makes this an import.
func (v *Vault) GenerateWallet(ctx context.Context, profile model.WalletProfile) (*model.Wallet, error) {
	if err := v.checkUnlocked(); err != nil {
		return nil, err
	}
	if profile.Mnemonic != "" {
		return v.ImportWallet(ctx, profile)
	}

	mnemonic, err := crypto.GenerateMnemonic(defaultMnemonicStrength)
	if err != nil {
		return nil, err
	}
	profile.Mnemonic = mnemonic

	id, err := crypto.GenerateWalletID()
	if err != nil {
		return nil, err
	}

	w, err := v.addWallet(ctx, id, profile)
	if err != nil {
		return nil, err
	}
	v.emitter.Emit(EventWalletGenerated, map[string]any{"id": w.ID, "publicKey": w.PublicKey.String()})
	return w, nil
}

// ImportWallet restores a wallet from the profile's mnemonic. The wallet id
// is deterministic from the public key, so re-importing the same mnemonic
// and path returns the existing record instead of creating a duplicate.
func (v *Vault) ImportWallet(ctx context.Context, profile model.WalletProfile) (*model.Wallet, error) {
	if err := v.checkUnlocked(); err != nil {
		return nil, err
	}
	if profile.Mnemonic == "" {
		return nil, errs.E(errs.InvalidMnemonic, "import requires a mnemonic", nil)
	}

	kp, _, err := v.deriveFromMnemonic(profile.Mnemonic, profile.DerivationPath)
	if err != nil {
		return nil, err
	}
	defer kp.Zero()

	id := crypto.DeterministicWalletID(kp.PublicKey)

	v.mu.Lock()
	for _, existing := range v.wallets {
		if existing.PublicKey != kp.PublicKey {
			continue
		}
		if existing.ID == id {
			cp := existing.Clone()
			v.mu.Unlock()
			return cp, nil
		}
		v.mu.Unlock()
		return nil, errs.Ef(errs.DuplicateWallet, "public key %s already held by wallet %s", kp.PublicKey, existing.ID).
			With("walletId", existing.ID)
	}
	v.mu.Unlock()

	w, err := v.addWallet(ctx, id, profile)
	if err != nil {
		return nil, err
	}
	v.emitter.Emit(EventWalletImported, map[string]any{"id": w.ID, "publicKey": w.PublicKey.String()})
	return w, nil
}

// addWallet derives, encrypts and persists a new wallet record under id.
func (v *Vault) addWallet(ctx context.Context, id string, profile model.WalletProfile) (*model.Wallet, error) {
	kp, path, err := v.deriveFromMnemonic(profile.Mnemonic, profile.DerivationPath)
	if err != nil {
		return nil, err
	}
	defer kp.Zero()
	profile.DerivationPath = path.String()

	v.mu.Lock()
	if err := v.requireUnlocked(); err != nil {
		v.mu.Unlock()
		return nil, err
	}

	blob, err := crypto.EncryptKeyMaterial(&model.KeyMaterial{
		Mnemonic:  profile.Mnemonic,
		SecretKey: kp.PrivateKey,
	}, v.password)
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}

	qr, err := addressQR(kp.PublicKey.String())
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}

	now := time.Now()
	w := &model.Wallet{
		ID:           id,
		Profile:      profile,
		PublicKey:    kp.PublicKey,
		EncryptedKey: blob,
		AddressQR:    qr,
		CreatedAt:    now,
		LastUsed:     now,
	}
	w.Profile.Mnemonic = ""
	v.wallets[id] = w
	cp := w.Clone()
	persist := w.Clone()
	v.mu.Unlock()

	if err := v.store.SaveWallet(ctx, persist); err != nil {
		v.mu.Lock()
		delete(v.wallets, id)
		v.mu.Unlock()
		return nil, errs.E(errs.StorageError, "failed to persist wallet", err)
	}

	v.log.Info("wallet added",
		zap.String("id", id),
		zap.String("publicKey", w.PublicKey.String()),
		zap.String("path", profile.DerivationPath))
	return cp, nil
}

// deriveFromMnemonic validates the mnemonic and path and derives the
// wallet's keypair. An empty path means the default Solana account path.
func (v *Vault) deriveFromMnemonic(mnemonic, path string) (model.Keypair, crypto.PathComponents, error) {
	if err := crypto.ValidateMnemonic(mnemonic); err != nil {
		return model.Keypair{}, crypto.PathComponents{}, err
	}

	components := crypto.DefaultPath()
	if path != "" {
		var err error
		components, err = crypto.ParseSolanaPath(path)
		if err != nil {
			return model.Keypair{}, crypto.PathComponents{}, err
		}
	}

	seed, err := crypto.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return model.Keypair{}, crypto.PathComponents{}, err
	}
	defer clear(seed)

	kp, err := crypto.DeriveKeypair(seed, components)
	if err != nil {
		return model.Keypair{}, crypto.PathComponents{}, err
	}
	return kp, components, nil
}

// ListWallets returns copies of all wallets, oldest first.
func (v *Vault) ListWallets() ([]*model.Wallet, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}

	out := make([]*model.Wallet, 0, len(v.wallets))
	for _, w := range v.wallets {
		out = append(out, w.Clone())
	}
	sortWalletsByCreation(out)
	return out, nil
}

// GetWallet returns a copy of one wallet.
func (v *Vault) GetWallet(id string) (*model.Wallet, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}
	w, ok := v.wallets[id]
	if !ok {
		return nil, errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
	}
	return w.Clone(), nil
}

// ExportWallet decrypts a wallet and returns its recovery view.
func (v *Vault) ExportWallet(id string) (*model.ExportedWallet, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}

	w, ok := v.wallets[id]
	if !ok {
		return nil, errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
	}

	km, err := crypto.DecryptKeyMaterial(w.EncryptedKey, v.password)
	if err != nil {
		return nil, err
	}
	defer clear(km.SecretKey)

	return &model.ExportedWallet{
		Profile:   w.Profile,
		Mnemonic:  km.Mnemonic,
		PublicKey: w.PublicKey,
		AddressQR: w.AddressQR,
		CreatedAt: w.CreatedAt,
	}, nil
}

// DeleteWallet removes a wallet record and its persisted document.
func (v *Vault) DeleteWallet(ctx context.Context, id string) error {
	v.mu.Lock()
	if err := v.requireUnlocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	if _, ok := v.wallets[id]; !ok {
		v.mu.Unlock()
		return errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
	}
	delete(v.wallets, id)
	v.mu.Unlock()

	if err := v.store.DeleteWallet(ctx, id); err != nil && errs.CodeOf(err) != errs.WalletNotFound {
		return errs.E(errs.StorageError, "failed to delete wallet document", err)
	}

	v.log.Info("wallet deleted", zap.String("id", id))
	v.emitter.Emit(EventWalletDeleted, map[string]any{"id": id})
	return nil
}

// Reset wipes every wallet and all persisted data, forcing the vault back
// to initialized-and-locked.
func (v *Vault) Reset(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return errs.E(errs.VaultNotInitialized, "vault is not initialized", nil)
	}

	if !v.locked {
		if err := v.lockLocked(ctx, "reset"); err != nil {
			return err
		}
	}
	v.wallets = make(map[string]*model.Wallet)
	v.lastActivity = time.Time{}

	if err := v.store.Clear(ctx); err != nil {
		return errs.E(errs.StorageError, "failed to clear storage", err)
	}

	v.log.Info("vault reset")
	v.emitter.Emit(EventReset, nil)
	return nil
}

// Backup serializes the persisted vault data into one snapshot.
func (v *Vault) Backup(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	if err := v.requireUnlocked(); err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.mu.Unlock()
	return v.store.Backup(ctx)
}

// Restore replaces the persisted vault data with a snapshot and reloads the
// wallet set. Key material stays encrypted under the password it was backed
// up with.
func (v *Vault) Restore(ctx context.Context, snapshot []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireUnlocked(); err != nil {
		return err
	}

	if err := v.store.Restore(ctx, snapshot); err != nil {
		return err
	}
	wallets, err := v.store.ListWallets(ctx)
	if err != nil {
		return errs.E(errs.StorageError, "failed to reload wallets", err)
	}
	v.wallets = make(map[string]*model.Wallet, len(wallets))
	for _, w := range wallets {
		v.wallets[w.ID] = w
	}

	v.log.Info("vault restored from snapshot", zap.Int("wallets", len(wallets)))
	return nil
}

// Close releases the auto-lock timer and pending confirmations without
// touching persisted state.
func (v *Vault) Close() {
	v.mu.Lock()
	if v.autoLockTimer != nil {
		v.autoLockTimer.Stop()
		v.autoLockTimer = nil
	}
	clear(v.password)
	v.password = nil
	v.locked = true
	v.mu.Unlock()

	v.confirmMu.Lock()
	for id, p := range v.confirms {
		p.timer.Stop()
		delete(v.confirms, id)
		p.resolve(false)
	}
	v.confirmMu.Unlock()
}

// addressQR renders the wallet's receive address as a base64 PNG.
func addressQR(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create address QR code: %w", err)
	}
	png, err := qr.PNG(qrSizePixels)
	if err != nil {
		return "", fmt.Errorf("failed to render address QR code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

func sortWalletsByCreation(ws []*model.Wallet) {
	sort.Slice(ws, func(i, j int) bool {
		return ws[i].CreatedAt.Before(ws[j].CreatedAt)
	})
}
