package vault

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/akarpov/svsim/internal/crypto"
	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

// pendingConfirmation is one signing request awaiting the simulated user.
// resolve is idempotent; whichever of the timer, ConfirmSigning or Close
// gets there first wins.
type pendingConfirmation struct {
	once  sync.Once
	done  chan bool
	timer *time.Timer
}

func (p *pendingConfirmation) resolve(approve bool) {
	p.once.Do(func() { p.done <- approve })
}

// DeriveKeypair re-derives a keypair from a wallet's mnemonic at path.
// Distinct paths yield distinct keys; the same path is stable across calls.
// The caller should Zero the keypair when done.
func (v *Vault) DeriveKeypair(id, path string) (*model.Keypair, error) {
	components, err := crypto.ParseSolanaPath(path)
	if err != nil {
		return nil, err
	}
	return v.DeriveKeypairFromComponents(id, components)
}

// DeriveKeypairFromComponents is DeriveKeypair over parsed path components.
func (v *Vault) DeriveKeypairFromComponents(id string, components crypto.PathComponents) (*model.Keypair, error) {
	if err := crypto.ValidateSolanaPath(components); err != nil {
		return nil, err
	}

	v.mu.Lock()
	if err := v.requireUnlocked(); err != nil {
		v.mu.Unlock()
		return nil, err
	}
	w, ok := v.wallets[id]
	if !ok {
		v.mu.Unlock()
		return nil, errs.Ef(errs.WalletNotFound, "wallet %s not found", id)
	}
	blob := w.EncryptedKey
	password := append([]byte(nil), v.password...)
	v.mu.Unlock()
	defer clear(password)

	km, err := crypto.DecryptKeyMaterial(blob, password)
	if err != nil {
		return nil, err
	}
	defer clear(km.SecretKey)

	seed, err := crypto.SeedFromMnemonic(km.Mnemonic, "")
	if err != nil {
		return nil, err
	}
	defer clear(seed)

	kp, err := crypto.DeriveKeypair(seed, components)
	if err != nil {
		return nil, err
	}
	return &kp, nil
}

// SignTransaction signs tx's canonical payload with the wallet's key. When
// autoApprove is false the call blocks on the simulated confirmation gate
// first.
func (v *Vault) SignTransaction(ctx context.Context, walletID string, tx *model.Transaction, autoApprove bool) (solana.Signature, error) {
	if tx == nil || len(tx.Instructions) == 0 {
		return solana.Signature{}, errs.E(errs.InvalidTransaction, "transaction is empty", nil)
	}
	payload, err := tx.SigningPayload()
	if err != nil {
		return solana.Signature{}, errs.E(errs.InvalidTransaction, "failed to serialize transaction", err)
	}

	sig, err := v.sign(ctx, walletID, payload, "transaction", autoApprove)
	if err != nil {
		return solana.Signature{}, err
	}
	v.emitter.Emit(EventTransactionSigned, map[string]any{"walletId": walletID, "signature": sig.String()})
	return sig, nil
}

// SignMessage signs an arbitrary off-chain message.
func (v *Vault) SignMessage(ctx context.Context, walletID string, message []byte, autoApprove bool) (solana.Signature, error) {
	if len(message) == 0 {
		return solana.Signature{}, errs.E(errs.InvalidTransaction, "message is empty", nil)
	}

	sig, err := v.sign(ctx, walletID, message, "message", autoApprove)
	if err != nil {
		return solana.Signature{}, err
	}
	v.emitter.Emit(EventMessageSigned, map[string]any{"walletId": walletID, "signature": sig.String()})
	return sig, nil
}

// sign is the shared signing path: re-derive the wallet's keypair, defend
// against storage corruption by asserting it matches the stored public key,
// pass the confirmation gate and produce the signature.
func (v *Vault) sign(ctx context.Context, walletID string, payload []byte, kind string, autoApprove bool) (solana.Signature, error) {
	v.mu.Lock()
	if err := v.requireUnlocked(); err != nil {
		v.mu.Unlock()
		return solana.Signature{}, err
	}
	w, ok := v.wallets[walletID]
	if !ok {
		v.mu.Unlock()
		return solana.Signature{}, errs.Ef(errs.WalletNotFound, "wallet %s not found", walletID)
	}
	storedKey := w.PublicKey
	path := w.Profile.DerivationPath
	blob := w.EncryptedKey
	password := append([]byte(nil), v.password...)
	confirmationTimeout := v.cfg.ConfirmationTimeout
	v.mu.Unlock()
	defer clear(password)

	km, err := crypto.DecryptKeyMaterial(blob, password)
	if err != nil {
		return solana.Signature{}, err
	}
	defer clear(km.SecretKey)

	seed, err := crypto.SeedFromMnemonic(km.Mnemonic, "")
	if err != nil {
		return solana.Signature{}, err
	}
	defer clear(seed)

	components, err := crypto.ParseSolanaPath(path)
	if err != nil {
		return solana.Signature{}, err
	}
	kp, err := crypto.DeriveKeypair(seed, components)
	if err != nil {
		return solana.Signature{}, err
	}
	defer kp.Zero()

	if kp.PublicKey != storedKey {
		return solana.Signature{}, errs.Ef(errs.SigningFailed,
			"derived public key %s does not match stored key %s", kp.PublicKey, storedKey).
			With("walletId", walletID)
	}

	if !autoApprove {
		approved, err := v.awaitConfirmation(ctx, walletID, kind, confirmationTimeout)
		if err != nil {
			return solana.Signature{}, err
		}
		if !approved {
			return solana.Signature{}, errs.Ef(errs.TransactionRejected, "signing %s rejected by user", kind).
				With("walletId", walletID)
		}
	}

	sig, err := crypto.Sign(kp.PrivateKey, payload)
	if err != nil {
		return solana.Signature{}, err
	}

	v.markUsed(ctx, walletID)
	v.log.Debug("payload signed", zap.String("walletId", walletID), zap.String("kind", kind))
	return sig, nil
}

// awaitConfirmation emits confirmationRequired and blocks until
// ConfirmSigning resolves the request, the context ends, or the
// confirmation timeout manufactures an approval.
func (v *Vault) awaitConfirmation(ctx context.Context, walletID, kind string, timeout time.Duration) (bool, error) {
	id := crypto.NewID()
	p := &pendingConfirmation{done: make(chan bool, 1)}
	p.timer = time.AfterFunc(timeout, func() {
		v.confirmMu.Lock()
		delete(v.confirms, id)
		v.confirmMu.Unlock()
		p.resolve(true)
	})

	v.confirmMu.Lock()
	v.confirms[id] = p
	v.confirmMu.Unlock()

	v.emitter.Emit(EventConfirmationRequired, map[string]any{
		"requestId": id,
		"walletId":  walletID,
		"kind":      kind,
	})

	select {
	case approved := <-p.done:
		return approved, nil
	case <-ctx.Done():
		v.confirmMu.Lock()
		delete(v.confirms, id)
		v.confirmMu.Unlock()
		p.timer.Stop()
		return false, errs.E(errs.SigningFailed, "signing cancelled", ctx.Err())
	}
}

// ConfirmSigning resolves a pending confirmation request.
func (v *Vault) ConfirmSigning(requestID string, approve bool) error {
	v.confirmMu.Lock()
	p, ok := v.confirms[requestID]
	if !ok {
		v.confirmMu.Unlock()
		return errs.Ef(errs.RequestNotFound, "confirmation request %s not found", requestID)
	}
	delete(v.confirms, requestID)
	v.confirmMu.Unlock()

	p.timer.Stop()
	p.resolve(approve)
	return nil
}

// markUsed stamps the wallet's LastUsed and persists the record.
func (v *Vault) markUsed(ctx context.Context, walletID string) {
	v.mu.Lock()
	w, ok := v.wallets[walletID]
	if !ok {
		v.mu.Unlock()
		return
	}
	w.LastUsed = time.Now()
	persist := w.Clone()
	v.mu.Unlock()

	if err := v.store.SaveWallet(ctx, persist); err != nil {
		v.log.Warn("failed to persist wallet usage", zap.String("walletId", walletID), zap.Error(err))
	}
}
