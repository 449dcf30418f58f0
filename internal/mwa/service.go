// Package mwa implements the wallet-adapter protocol service: dApp session
// lifecycle plus the per-item signing pipeline that orchestrates validator,
// tracker, approval simulator and vault. Batch items are processed
// independently and in input order; one failing item never aborts the batch.
package mwa

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akarpov/svsim/internal/approval"
	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/event"
	"github.com/akarpov/svsim/internal/logger"
	"github.com/akarpov/svsim/internal/model"
	"github.com/akarpov/svsim/internal/tracker"
	"github.com/akarpov/svsim/internal/validator"
	"github.com/akarpov/svsim/internal/vault"
)

// Event types emitted by the protocol service.
const (
	EventSessionConnected     event.Type = "sessionConnected"
	EventSessionDisconnected  event.Type = "sessionDisconnected"
	EventSessionAuthorized    event.Type = "sessionAuthorized"
	EventApprovalRequested    event.Type = "transactionApprovalRequested"
	EventApprovalApproved     event.Type = "transactionApprovalApproved"
	EventApprovalRejected     event.Type = "transactionApprovalRejected"
	EventTransactionSigned    event.Type = "transactionSigned"
	EventTransactionSignFail  event.Type = "transactionSigningFailed"
	EventMessageSigned        event.Type = "messageSigned"
	EventMessageSigningFailed event.Type = "messageSigningFailed"
)

const defaultIdleTimeout = 10 * time.Minute

// Options tunes the protocol service.
type Options struct {
	// IdleTimeout disconnects a session with no activity for this long.
	IdleTimeout time.Duration
}

// Service owns one session table. All methods are safe for concurrent use.
type Service struct {
	opts     Options
	vault    *vault.Vault
	tracker  *tracker.Tracker
	approver *approval.Simulator
	log      *zap.Logger

	emitter event.Emitter

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session   *model.Session
	idleTimer *time.Timer
}

// NewService wires the protocol service to its collaborators. log may be
// nil.
func NewService(v *vault.Vault, tr *tracker.Tracker, ap *approval.Simulator, opts Options, log *zap.Logger) *Service {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	return &Service{
		opts:     opts,
		vault:    v,
		tracker:  tr,
		approver: ap,
		log:      logger.OrNop(log),
		sessions: make(map[string]*sessionEntry),
	}
}

// Subscribe registers an event listener; the returned func cancels it.
func (s *Service) Subscribe(fn event.Listener) func() {
	return s.emitter.Subscribe(fn)
}

// Connect opens a session for the dApp and starts its idle timer.
func (s *Service) Connect(dApp string) (*model.Session, error) {
	dApp = strings.TrimSpace(dApp)
	if dApp == "" {
		return nil, errs.E(errs.InvalidRequest, "dApp identifier is blank", nil)
	}

	now := time.Now()
	session := &model.Session{
		ID:           uuid.NewString(),
		DApp:         dApp,
		State:        model.SessionConnected,
		ConnectedAt:  now,
		LastActivity: now,
	}
	entry := &sessionEntry{session: session}

	s.mu.Lock()
	s.sessions[session.ID] = entry
	entry.idleTimer = time.AfterFunc(s.opts.IdleTimeout, func() { s.idleDisconnect(session.ID) })
	s.mu.Unlock()

	s.log.Info("session connected", zap.String("sessionId", session.ID), zap.String("dApp", dApp))
	s.emitter.Emit(EventSessionConnected, map[string]any{"sessionId": session.ID, "dApp": dApp})
	return session.Clone(), nil
}

// Authorize binds the session to the vault's first wallet. The
// single-wallet-per-session policy is deliberate: the simulated device holds
// one active wallet identity per dApp connection.
func (s *Service) Authorize(sessionID string, req model.AuthorizeRequest) (*model.AuthorizeResult, error) {
	if _, err := s.touch(sessionID, false); err != nil {
		return nil, err
	}

	wallets, err := s.vault.ListWallets()
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return nil, errs.E(errs.NoWalletsAvailable, "vault holds no wallets to authorize", nil)
	}
	w := wallets[0]

	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, errs.Ef(errs.SessionNotFound, "session %s not found", sessionID)
	}
	now := time.Now()
	pk := w.PublicKey
	entry.session.Authorized = true
	entry.session.WalletID = w.ID
	entry.session.PublicKey = &pk
	entry.session.Permissions = append([]string(nil), req.Permissions...)
	entry.session.AuthorizedAt = &now
	entry.session.LastActivity = now
	s.mu.Unlock()

	s.log.Info("session authorized",
		zap.String("sessionId", sessionID),
		zap.String("walletId", w.ID))
	s.emitter.Emit(EventSessionAuthorized, map[string]any{
		"sessionId": sessionID,
		"walletId":  w.ID,
		"publicKey": pk.String(),
	})
	return &model.AuthorizeResult{
		SessionID:    sessionID,
		WalletID:     w.ID,
		PublicKey:    pk,
		Permissions:  append([]string(nil), req.Permissions...),
		AuthorizedAt: now,
	}, nil
}

// SignTransactions runs the signing pipeline over the batch. Structural
// problems (unknown or unauthorized session, empty batch) fail the call;
// per-item failures come back as result entries in input order.
func (s *Service) SignTransactions(ctx context.Context, sessionID string, txs []*model.Transaction, autoApprove bool) ([]model.ItemResult, error) {
	session, err := s.touch(sessionID, true)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, errs.E(errs.InvalidRequest, "transaction batch is empty", nil)
	}

	results := make([]model.ItemResult, len(txs))
	for i, tx := range txs {
		results[i] = s.signTransaction(ctx, session, tx, autoApprove)
	}
	return results, nil
}

func (s *Service) signTransaction(ctx context.Context, session *model.Session, tx *model.Transaction, autoApprove bool) model.ItemResult {
	res := validator.Validate(tx)
	if !res.IsValid {
		return model.ItemResult{
			Error:     "transaction validation failed: " + strings.Join(res.Errors, "; "),
			ErrorCode: string(errs.TransactionValidationFailed),
		}
	}

	id := uuid.NewString()
	s.tracker.CreateTransaction(id, session.WalletID, session.DApp, tx, nil, res.Metadata)

	decision := s.requestApproval(&model.ApprovalRequest{
		ID:          id,
		WalletID:    session.WalletID,
		DApp:        session.DApp,
		Transaction: tx,
		Metadata:    res.Metadata,
		AutoApprove: autoApprove,
		CreatedAt:   time.Now(),
	})
	if !decision.Approved {
		s.markRejected(id, decision.Reason)
		return model.ItemResult{
			Error:      "transaction rejected: " + decision.Reason,
			ErrorCode:  string(errs.TransactionRejected),
			TrackingID: id,
		}
	}
	s.markApproved(id, decision.Reason)

	// Human approval already happened, so the vault signs auto-approved.
	sig, err := s.vault.SignTransaction(ctx, session.WalletID, tx, true)
	if err != nil {
		s.markSigningFailed(id, err, EventTransactionSignFail)
		return model.ItemResult{
			Error:      "signing failed: " + err.Error(),
			ErrorCode:  signingErrorCode(err),
			TrackingID: id,
		}
	}

	s.markSigned(id, sig.String(), EventTransactionSigned)
	return model.ItemResult{Signature: sig.String(), TrackingID: id}
}

// SignMessages is SignTransactions for off-chain messages. Message items
// skip transaction classification; an empty message is the only validation
// failure.
func (s *Service) SignMessages(ctx context.Context, sessionID string, messages [][]byte, autoApprove bool) ([]model.ItemResult, error) {
	session, err := s.touch(sessionID, true)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errs.E(errs.InvalidRequest, "message batch is empty", nil)
	}

	results := make([]model.ItemResult, len(messages))
	for i, msg := range messages {
		results[i] = s.signMessage(ctx, session, msg, autoApprove)
	}
	return results, nil
}

func (s *Service) signMessage(ctx context.Context, session *model.Session, msg []byte, autoApprove bool) model.ItemResult {
	if len(msg) == 0 {
		return model.ItemResult{
			Error:     "message validation failed: message is empty",
			ErrorCode: string(errs.TransactionValidationFailed),
		}
	}

	id := uuid.NewString()
	md := model.TransactionMetadata{Type: model.TypeMessage}
	s.tracker.CreateTransaction(id, session.WalletID, session.DApp, nil, msg, md)

	decision := s.requestApproval(&model.ApprovalRequest{
		ID:          id,
		WalletID:    session.WalletID,
		DApp:        session.DApp,
		Message:     msg,
		Metadata:    md,
		AutoApprove: autoApprove,
		CreatedAt:   time.Now(),
	})
	if !decision.Approved {
		s.markRejected(id, decision.Reason)
		return model.ItemResult{
			Error:      "message rejected: " + decision.Reason,
			ErrorCode:  string(errs.TransactionRejected),
			TrackingID: id,
		}
	}
	s.markApproved(id, decision.Reason)

	sig, err := s.vault.SignMessage(ctx, session.WalletID, msg, true)
	if err != nil {
		s.markSigningFailed(id, err, EventMessageSigningFailed)
		return model.ItemResult{
			Error:      "signing failed: " + err.Error(),
			ErrorCode:  signingErrorCode(err),
			TrackingID: id,
		}
	}

	s.markSigned(id, sig.String(), EventMessageSigned)
	return model.ItemResult{Signature: sig.String(), TrackingID: id}
}

func (s *Service) requestApproval(req *model.ApprovalRequest) model.ApprovalDecision {
	s.emitter.Emit(EventApprovalRequested, map[string]any{"id": req.ID, "walletId": req.WalletID})
	decision := s.approver.RequestApproval(req)
	if decision.Approved {
		s.emitter.Emit(EventApprovalApproved, map[string]any{"id": req.ID, "reason": decision.Reason})
	} else {
		s.emitter.Emit(EventApprovalRejected, map[string]any{"id": req.ID, "reason": decision.Reason})
	}
	return decision
}

// Tracker mutations inside the pipeline log failures instead of failing the
// item: the entry is bookkeeping, the signature is the product.

func (s *Service) markApproved(id, reason string) {
	if err := s.tracker.UpdateStatus(id, model.StatusApproved, reason); err != nil {
		s.log.Warn("failed to mark entry approved", zap.String("id", id), zap.Error(err))
	}
}

func (s *Service) markRejected(id, reason string) {
	if err := s.tracker.UpdateStatus(id, model.StatusRejected, reason); err != nil {
		s.log.Warn("failed to mark entry rejected", zap.String("id", id), zap.Error(err))
	}
	if err := s.tracker.AddError(id, "rejected: "+reason); err != nil {
		s.log.Warn("failed to record rejection", zap.String("id", id), zap.Error(err))
	}
}

func (s *Service) markSigned(id, signature string, evType event.Type) {
	if err := s.tracker.UpdateStatus(id, model.StatusSigning, ""); err != nil {
		s.log.Warn("failed to mark entry signing", zap.String("id", id), zap.Error(err))
	}
	if err := s.tracker.UpdateStatus(id, model.StatusSigned, ""); err != nil {
		s.log.Warn("failed to mark entry signed", zap.String("id", id), zap.Error(err))
	}
	if err := s.tracker.AddSignature(id, signature); err != nil {
		s.log.Warn("failed to attach signature", zap.String("id", id), zap.Error(err))
	}
	s.emitter.Emit(evType, map[string]any{"id": id, "signature": signature})
}

func (s *Service) markSigningFailed(id string, cause error, evType event.Type) {
	if err := s.tracker.UpdateStatus(id, model.StatusSigning, ""); err != nil {
		s.log.Warn("failed to mark entry signing", zap.String("id", id), zap.Error(err))
	}
	if err := s.tracker.UpdateStatus(id, model.StatusSigningFailed, cause.Error()); err != nil {
		s.log.Warn("failed to mark entry signing_failed", zap.String("id", id), zap.Error(err))
	}
	if err := s.tracker.AddError(id, cause.Error()); err != nil {
		s.log.Warn("failed to record signing error", zap.String("id", id), zap.Error(err))
	}
	s.emitter.Emit(evType, map[string]any{"id": id, "error": cause.Error()})
}

// signingErrorCode keeps the vault's taxonomy code when it has one.
func signingErrorCode(err error) string {
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return string(errs.SigningFailed)
}

// Disconnect removes the session and stops its idle timer. Disconnecting an
// unknown session is a no-op.
func (s *Service) Disconnect(sessionID string) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if ok {
		entry.idleTimer.Stop()
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.log.Info("session disconnected", zap.String("sessionId", sessionID))
	s.emitter.Emit(EventSessionDisconnected, map[string]any{"sessionId": sessionID, "cause": "explicit"})
}

// idleDisconnect fires from a session's idle timer.
func (s *Service) idleDisconnect(sessionID string) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if ok {
		// A touch may have re-armed the timer after this fired.
		if time.Since(entry.session.LastActivity) < s.opts.IdleTimeout {
			ok = false
		} else {
			delete(s.sessions, sessionID)
		}
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.log.Info("session idle timeout", zap.String("sessionId", sessionID))
	s.emitter.Emit(EventSessionDisconnected, map[string]any{"sessionId": sessionID, "cause": "idle"})
}

// GetSession returns a copy of one session.
func (s *Service) GetSession(sessionID string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, errs.Ef(errs.SessionNotFound, "session %s not found", sessionID)
	}
	return entry.session.Clone(), nil
}

// Sessions returns copies of all live sessions ordered by connection time.
func (s *Service) Sessions() []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Session, 0, len(s.sessions))
	for _, entry := range s.sessions {
		out = append(out, entry.session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// touch validates the session, optionally requiring authorization, then
// refreshes its activity and re-arms the idle timer.
func (s *Service) touch(sessionID string, needAuthorized bool) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, errs.Ef(errs.SessionNotFound, "session %s not found", sessionID)
	}
	if needAuthorized && !entry.session.Authorized {
		return nil, errs.Ef(errs.SessionNotAuthorized, "session %s is not authorized", sessionID)
	}

	entry.session.LastActivity = time.Now()
	entry.idleTimer.Reset(s.opts.IdleTimeout)
	return entry.session.Clone(), nil
}

// Close disconnects every session and stops its timer.
func (s *Service) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id, entry := range s.sessions {
		entry.idleTimer.Stop()
		ids = append(ids, id)
	}
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for _, id := range ids {
		s.emitter.Emit(EventSessionDisconnected, map[string]any{"sessionId": id, "cause": "shutdown"})
	}
}
