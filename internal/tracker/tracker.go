// Package tracker keeps the append-only lifecycle log of signing requests.
// Entries are born pending, advance forward-only through the status graph
// and leave only through retention cleanup.
package tracker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/event"
	"github.com/akarpov/svsim/internal/logger"
	"github.com/akarpov/svsim/internal/model"
)

// Event types emitted by the tracker.
const (
	EventCreated        event.Type = "transactionCreated"
	EventStatusUpdated  event.Type = "statusUpdated"
	EventSignatureAdded event.Type = "signatureAdded"
	EventErrorAdded     event.Type = "errorAdded"
)

// transitions is the legal forward edge set of the status graph. Expired is
// reachable from any state and is handled separately.
var transitions = map[model.TxStatus][]model.TxStatus{
	model.StatusPending:   {model.StatusApproved, model.StatusRejected},
	model.StatusApproved:  {model.StatusSigning},
	model.StatusSigning:   {model.StatusSigned, model.StatusSigningFailed},
	model.StatusSigned:    {model.StatusSubmitted},
	model.StatusSubmitted: {model.StatusConfirmed, model.StatusFailed},
}

// Options tunes retention. Zero values fall back to the defaults below.
type Options struct {
	// RetentionAge removes entries older than this on each sweep.
	RetentionAge time.Duration
	// MaxEntries trims the oldest surplus after the age pass.
	MaxEntries int
	// SweepInterval is the cadence of the retention sweeper started by
	// StartSweeper.
	SweepInterval time.Duration
}

const (
	defaultRetentionAge  = 24 * time.Hour
	defaultMaxEntries    = 1000
	defaultSweepInterval = time.Minute
)

// Tracker owns one activity log. All methods are safe for concurrent use.
type Tracker struct {
	opts Options
	log  *zap.Logger

	emitter event.Emitter

	mu      sync.Mutex
	entries map[string]*model.LogEntry
	// order holds ids oldest-first so retention trimming and newest-first
	// queries avoid re-sorting the whole map.
	order []string

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New builds a tracker. log may be nil.
func New(opts Options, log *zap.Logger) *Tracker {
	if opts.RetentionAge <= 0 {
		opts.RetentionAge = defaultRetentionAge
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	return &Tracker{
		opts:    opts,
		log:     logger.OrNop(log),
		entries: make(map[string]*model.LogEntry),
	}
}

// Subscribe registers an event listener; the returned func cancels it.
func (t *Tracker) Subscribe(fn event.Listener) func() {
	return t.emitter.Subscribe(fn)
}

// CreateTransaction is the only way an entry is born. The entry starts
// pending with a creation event on its timeline.
func (t *Tracker) CreateTransaction(id, walletID, dApp string, tx *model.Transaction, message []byte, md model.TransactionMetadata) *model.LogEntry {
	now := time.Now()
	entry := &model.LogEntry{
		ID:          id,
		WalletID:    walletID,
		DApp:        dApp,
		Transaction: tx,
		Message:     message,
		Metadata:    md,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Events: []model.LogEvent{{
			At:     now,
			Kind:   "created",
			Detail: string(md.Type),
		}},
	}

	t.mu.Lock()
	t.entries[id] = entry
	t.order = append(t.order, id)
	cp := entry.Clone()
	t.mu.Unlock()

	t.emitter.Emit(EventCreated, map[string]any{"id": id, "walletId": walletID, "dApp": dApp})
	t.log.Debug("transaction created", zap.String("id", id), zap.String("type", string(md.Type)))
	return cp
}

// UpdateStatus advances an entry along the lifecycle graph; a step that is
// not a legal forward edge fails InvalidTransition. Key phases stamp their
// dedicated timestamp.
func (t *Tracker) UpdateStatus(id string, status model.TxStatus, detail string) error {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return errs.Ef(errs.TransactionNotFound, "transaction %s not found", id)
	}
	if !legalTransition(entry.Status, status) {
		from := entry.Status
		t.mu.Unlock()
		return errs.Ef(errs.InvalidTransition, "illegal status transition %s -> %s", from, status)
	}

	now := time.Now()
	entry.Status = status
	entry.UpdatedAt = now
	switch status {
	case model.StatusApproved:
		entry.ApprovedAt = &now
	case model.StatusRejected:
		entry.RejectedAt = &now
	case model.StatusSigned:
		entry.SignedAt = &now
	}
	entry.Events = append(entry.Events, model.LogEvent{At: now, Kind: "status:" + string(status), Detail: detail})
	t.mu.Unlock()

	t.emitter.Emit(EventStatusUpdated, map[string]any{"id": id, "status": string(status)})
	return nil
}

// AddSignature attaches the signature produced by the vault.
func (t *Tracker) AddSignature(id, signature string) error {
	return t.mutate(id, EventSignatureAdded, "signature", signature, func(e *model.LogEntry) {
		e.Signature = signature
	})
}

// AddError attaches a failure description without changing the status.
func (t *Tracker) AddError(id, errMsg string) error {
	return t.mutate(id, EventErrorAdded, "error", errMsg, func(e *model.LogEntry) {
		e.Error = errMsg
	})
}

// AddEvent appends a free-form timeline event.
func (t *Tracker) AddEvent(id, kind, detail string) error {
	return t.mutate(id, EventStatusUpdated, kind, detail, nil)
}

func (t *Tracker) mutate(id string, evType event.Type, kind, detail string, apply func(*model.LogEntry)) error {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return errs.Ef(errs.TransactionNotFound, "transaction %s not found", id)
	}
	now := time.Now()
	if apply != nil {
		apply(entry)
	}
	entry.UpdatedAt = now
	entry.Events = append(entry.Events, model.LogEvent{At: now, Kind: kind, Detail: detail})
	t.mu.Unlock()

	t.emitter.Emit(evType, map[string]any{"id": id, "kind": kind})
	return nil
}

// Get returns a copy of one entry.
func (t *Tracker) Get(id string) (*model.LogEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok {
		return nil, errs.Ef(errs.TransactionNotFound, "transaction %s not found", id)
	}
	return entry.Clone(), nil
}

// Query filters the log and returns copies newest-first, with offset/limit
// applied after filtering.
func (t *Tracker) Query(q model.LogQuery) []*model.LogEntry {
	t.mu.Lock()
	matched := make([]*model.LogEntry, 0)
	// Walk newest-first.
	for i := len(t.order) - 1; i >= 0; i-- {
		entry := t.entries[t.order[i]]
		if entry == nil || !matches(entry, q) {
			continue
		}
		matched = append(matched, entry)
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*model.LogEntry, len(matched))
	for i, e := range matched {
		out[i] = e.Clone()
	}
	t.mu.Unlock()
	return out
}

func matches(e *model.LogEntry, q model.LogQuery) bool {
	if q.WalletID != nil && e.WalletID != *q.WalletID {
		return false
	}
	if q.DApp != nil && e.DApp != *q.DApp {
		return false
	}
	if q.Status != nil && e.Status != *q.Status {
		return false
	}
	if q.Type != nil && e.Metadata.Type != *q.Type {
		return false
	}
	if q.Since != nil && e.CreatedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && e.CreatedAt.After(*q.Until) {
		return false
	}
	return true
}

// Stats aggregates the whole log.
func (t *Tracker) Stats() model.TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := model.TrackerStats{
		Total:    len(t.entries),
		ByStatus: make(map[model.TxStatus]int),
		ByType:   make(map[model.TransactionType]int),
		ByDApp:   make(map[string]int),
	}

	var approvalTotal, signingTotal time.Duration
	var approvalN, signingN, succeeded int
	for _, e := range t.entries {
		stats.ByStatus[e.Status]++
		stats.ByType[e.Metadata.Type]++
		if e.DApp != "" {
			stats.ByDApp[e.DApp]++
		}
		if e.ApprovedAt != nil {
			approvalTotal += e.ApprovedAt.Sub(e.CreatedAt)
			approvalN++
			if e.SignedAt != nil {
				signingTotal += e.SignedAt.Sub(*e.ApprovedAt)
				signingN++
			}
		}
		if e.Status == model.StatusSigned || e.Status == model.StatusConfirmed {
			succeeded++
		}
	}
	if approvalN > 0 {
		stats.AvgApprovalLatency = approvalTotal / time.Duration(approvalN)
	}
	if signingN > 0 {
		stats.AvgSigningLatency = signingTotal / time.Duration(signingN)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(succeeded) / float64(stats.Total)
	}
	return stats
}

func legalTransition(from, to model.TxStatus) bool {
	if to == model.StatusExpired {
		return from != model.StatusExpired
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StartSweeper launches the retention goroutine. StopSweeper (or a second
// StartSweeper) must not be called concurrently with it.
func (t *Tracker) StartSweeper() {
	if t.stopSweep != nil {
		return
	}
	t.stopSweep = make(chan struct{})
	t.sweepDone = make(chan struct{})

	go func() {
		ticker := time.NewTicker(t.opts.SweepInterval)
		defer ticker.Stop()
		defer close(t.sweepDone)
		for {
			select {
			case <-t.stopSweep:
				return
			case <-ticker.C:
				if removed := t.Sweep(); removed > 0 {
					t.log.Info("retention sweep removed entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// StopSweeper stops the retention goroutine and waits for it to exit.
func (t *Tracker) StopSweeper() {
	if t.stopSweep == nil {
		return
	}
	close(t.stopSweep)
	<-t.sweepDone
	t.stopSweep = nil
	t.sweepDone = nil
}

// Sweep removes entries older than the retention age, then trims the oldest
// surplus while the log still exceeds the entry cap. Returns the number
// removed.
func (t *Tracker) Sweep() int {
	cutoff := time.Now().Add(-t.opts.RetentionAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.order[:0]
	removed := 0
	for _, id := range t.order {
		e := t.entries[id]
		if e != nil && e.CreatedAt.Before(cutoff) {
			delete(t.entries, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept

	for len(t.order) > t.opts.MaxEntries {
		id := t.order[0]
		t.order = t.order[1:]
		delete(t.entries, id)
		removed++
	}
	return removed
}
