// Package approval simulates the human approval surface for signing
// requests. Every pending request is tracked independently per id: it
// resolves by explicit autoApprove, by the small-transfer policy, by a
// manual Approve/Reject call, or — after the configured delay — by a
// weighted-random simulated user whose rejection rate grows with the
// request's risk.
package approval

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akarpov/svsim/internal/common"
	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/event"
	"github.com/akarpov/svsim/internal/logger"
	"github.com/akarpov/svsim/internal/model"
	"github.com/akarpov/svsim/internal/validator"
)

// Event types emitted by the simulator.
const (
	EventDisplayed Event = "approvalDisplayed"
	EventResolved  Event = "approvalResolved"
)

// Event aliases event.Type for the simulator's own constants.
type Event = event.Type

// Options tunes the simulator. Zero values fall back to the defaults below.
type Options struct {
	// Delay is the hard upper bound a request waits for a manual decision
	// before the simulated user decides.
	Delay time.Duration
	// BaseRejectionRate is the zero-risk rejection probability.
	BaseRejectionRate float64
	// RiskWeight scales how much the risk score adds to the rejection
	// probability.
	RiskWeight float64
	// AutoApproveMaxLamports auto-approves plain transfers at or below
	// this amount. Zero disables the policy.
	AutoApproveMaxLamports uint64
	// HighValueLamports feeds the validator's risk gate.
	HighValueLamports uint64
	// ApproveAll makes the simulated user always approve. Manual rejects
	// still work.
	ApproveAll bool
	// Rand is the decision source. Nil seeds from the clock; tests
	// inject a seeded source for determinism.
	Rand *rand.Rand
}

const (
	defaultDelay             = 3 * time.Second
	defaultBaseRejectionRate = 0.05
	defaultRiskWeight        = 0.3
)

// Simulator resolves approval requests. One instance owns its pending
// table; concurrent resolutions for different ids do not interfere.
type Simulator struct {
	opts Options
	log  *zap.Logger

	emitter event.Emitter

	mu      sync.Mutex
	rng     *rand.Rand
	pending map[string]*pendingRequest
}

type pendingRequest struct {
	req   *model.ApprovalRequest
	done  chan model.ApprovalDecision
	timer *time.Timer
}

// NewSimulator builds a simulator with the given options. log may be nil.
func NewSimulator(opts Options, log *zap.Logger) *Simulator {
	if opts.Delay <= 0 {
		opts.Delay = defaultDelay
	}
	if opts.BaseRejectionRate <= 0 {
		opts.BaseRejectionRate = defaultBaseRejectionRate
	}
	if opts.RiskWeight <= 0 {
		opts.RiskWeight = defaultRiskWeight
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		opts:    opts,
		log:     logger.OrNop(log),
		rng:     rng,
		pending: make(map[string]*pendingRequest),
	}
}

// Subscribe registers an event listener; the returned func cancels it.
func (s *Simulator) Subscribe(fn event.Listener) func() {
	return s.emitter.Subscribe(fn)
}

// RequestApproval resolves req and blocks until a decision exists. The
// caller must have validated the transaction already; the simulator only
// judges risk.
func (s *Simulator) RequestApproval(req *model.ApprovalRequest) model.ApprovalDecision {
	if req.AutoApprove {
		return s.resolveImmediately(req, true, "Auto-approved")
	}

	md := req.Metadata
	if s.opts.AutoApproveMaxLamports > 0 &&
		md.Type == model.TypeTransfer &&
		md.TransferLamports != nil &&
		*md.TransferLamports <= s.opts.AutoApproveMaxLamports &&
		!validator.RequiresUserApproval(md, s.opts.HighValueLamports) {
		return s.resolveImmediately(req, true, "Auto-approved: small transfer")
	}

	return s.simulateUser(req)
}

func (s *Simulator) resolveImmediately(req *model.ApprovalRequest, approved bool, reason string) model.ApprovalDecision {
	decision := model.ApprovalDecision{
		RequestID: req.ID,
		Approved:  approved,
		Reason:    reason,
		DecidedAt: time.Now(),
	}
	s.emitResolved(req, decision)
	return decision
}

// simulateUser displays the request, waits up to the configured delay for a
// manual decision and otherwise manufactures one from the risk-weighted
// random source.
func (s *Simulator) simulateUser(req *model.ApprovalRequest) model.ApprovalDecision {
	p := &pendingRequest{
		req:  req,
		done: make(chan model.ApprovalDecision, 1),
	}

	s.mu.Lock()
	s.pending[req.ID] = p
	p.timer = time.AfterFunc(s.opts.Delay, func() { s.decideRandomly(req.ID) })
	s.mu.Unlock()

	payload := map[string]any{
		"requestId": req.ID,
		"walletId":  req.WalletID,
		"dApp":      req.DApp,
		"type":      string(req.Metadata.Type),
	}
	if req.Metadata.TransferLamports != nil {
		payload["amountSOL"] = common.LamportsToSOL(*req.Metadata.TransferLamports)
		payload["recipient"] = req.Metadata.TransferRecipient
	}
	s.emitter.Emit(EventDisplayed, payload)
	s.log.Debug("approval request displayed",
		zap.String("requestId", req.ID),
		zap.String("type", string(req.Metadata.Type)))

	return <-p.done
}

// decideRandomly fires when the delay elapses with no manual decision.
func (s *Simulator) decideRandomly(id string) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)

	approved := true
	reason := "Approved by user"
	if !s.opts.ApproveAll {
		threshold := s.opts.BaseRejectionRate + s.opts.RiskWeight*riskScore(p.req.Metadata, s.opts.HighValueLamports)
		if s.rng.Float64() < threshold {
			approved = false
			reason = "Rejected by user"
		}
	}
	s.mu.Unlock()

	s.finish(p, model.ApprovalDecision{
		RequestID: id,
		Approved:  approved,
		Reason:    reason,
		DecidedAt: time.Now(),
	})
}

// ApproveRequest manually approves a pending request, cancelling its timer.
func (s *Simulator) ApproveRequest(id string) error {
	return s.resolveManually(id, true, "Approved manually")
}

// RejectRequest manually rejects a pending request with a reason.
func (s *Simulator) RejectRequest(id, reason string) error {
	if reason == "" {
		reason = "Rejected manually"
	}
	return s.resolveManually(id, false, reason)
}

func (s *Simulator) resolveManually(id string, approved bool, reason string) error {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return errs.Ef(errs.RequestNotFound, "approval request %s not found", id)
	}
	delete(s.pending, id)
	p.timer.Stop()
	s.mu.Unlock()

	s.finish(p, model.ApprovalDecision{
		RequestID: id,
		Approved:  approved,
		Reason:    reason,
		Manual:    true,
		DecidedAt: time.Now(),
	})
	return nil
}

func (s *Simulator) finish(p *pendingRequest, decision model.ApprovalDecision) {
	s.emitResolved(p.req, decision)
	p.done <- decision
}

func (s *Simulator) emitResolved(req *model.ApprovalRequest, decision model.ApprovalDecision) {
	s.emitter.Emit(EventResolved, map[string]any{
		"requestId": decision.RequestID,
		"approved":  decision.Approved,
		"reason":    decision.Reason,
		"manual":    decision.Manual,
	})
	s.log.Debug("approval request resolved",
		zap.String("requestId", decision.RequestID),
		zap.Bool("approved", decision.Approved),
		zap.String("reason", decision.Reason))
}

// Pending returns copies of the requests still awaiting a decision,
// oldest first.
func (s *Simulator) Pending() []*model.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.ApprovalRequest, 0, len(s.pending))
	for _, p := range s.pending {
		cp := *p.req
		out = append(out, &cp)
	}
	sortRequests(out)
	return out
}

func sortRequests(reqs []*model.ApprovalRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}

// Close rejects every pending request and stops its timer, so no timer
// leaks across test runs.
func (s *Simulator) Close() {
	s.mu.Lock()
	pending := make([]*pendingRequest, 0, len(s.pending))
	for id, p := range s.pending {
		p.timer.Stop()
		pending = append(pending, p)
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, p := range pending {
		s.finish(p, model.ApprovalDecision{
			RequestID: p.req.ID,
			Approved:  false,
			Reason:    "Rejected: simulator shut down",
			DecidedAt: time.Now(),
		})
	}
}

// riskScore maps metadata to [0, 1]. Plain transfers are low risk; opaque
// program interactions and high-value amounts push the score up.
func riskScore(md model.TransactionMetadata, highValueLamports uint64) float64 {
	var score float64
	switch md.Type {
	case model.TypeTransfer, model.TypeAccountCreation:
		score = 0.1
	case model.TypeTokenTransfer:
		score = 0.4
	case model.TypeProgramInteraction:
		score = 0.6
	default:
		score = 0.8
	}
	if highValueLamports == 0 {
		highValueLamports = validator.HighValueLamports
	}
	if md.TransferLamports != nil && *md.TransferLamports > highValueLamports {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}
