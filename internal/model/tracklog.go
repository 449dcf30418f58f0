package model

import "time"

// TxStatus is the lifecycle status of a tracked signing request.
type TxStatus string

const (
	StatusPending       TxStatus = "pending"
	StatusApproved      TxStatus = "approved"
	StatusRejected      TxStatus = "rejected"
	StatusSigning       TxStatus = "signing"
	StatusSigned        TxStatus = "signed"
	StatusSigningFailed TxStatus = "signing_failed"
	// Submitted, confirmed and failed are reserved for network
	// submission, which the simulator never performs itself.
	StatusSubmitted TxStatus = "submitted"
	StatusConfirmed TxStatus = "confirmed"
	StatusFailed    TxStatus = "failed"
	// Expired is reserved for retention-style expiry marking.
	StatusExpired TxStatus = "expired"
)

// LogEvent is one timeline entry on a tracked request.
type LogEvent struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// LogEntry is the tracker's record of one signing request from submission
// to its terminal status. Phase timestamps stamp the key transitions.
type LogEntry struct {
	ID          string              `json:"id"`
	WalletID    string              `json:"walletId"`
	DApp        string              `json:"dApp,omitempty"`
	Transaction *Transaction        `json:"transaction,omitempty"`
	Message     []byte              `json:"message,omitempty"`
	Metadata    TransactionMetadata `json:"metadata"`
	Status      TxStatus            `json:"status"`
	Signature   string              `json:"signature,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	ApprovedAt  *time.Time          `json:"approvedAt,omitempty"`
	SignedAt    *time.Time          `json:"signedAt,omitempty"`
	RejectedAt  *time.Time          `json:"rejectedAt,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Events      []LogEvent          `json:"events"`
}

// Clone returns an independent copy safe to hand outside the tracker.
func (e *LogEntry) Clone() *LogEntry {
	cp := *e
	if e.Transaction != nil {
		tx := *e.Transaction
		tx.Instructions = append([]Instruction(nil), e.Transaction.Instructions...)
		cp.Transaction = &tx
	}
	cp.Message = append([]byte(nil), e.Message...)
	cp.Events = append([]LogEvent(nil), e.Events...)
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	cp.ApprovedAt = copyTime(e.ApprovedAt)
	cp.SignedAt = copyTime(e.SignedAt)
	cp.RejectedAt = copyTime(e.RejectedAt)
	return &cp
}

// LogQuery filters the activity log. Nil fields match everything; Since and
// Until bound CreatedAt inclusively. Results are newest-first; Offset skips
// and Limit caps after filtering.
type LogQuery struct {
	WalletID *string          `json:"walletId,omitempty"`
	DApp     *string          `json:"dApp,omitempty"`
	Status   *TxStatus        `json:"status,omitempty"`
	Type     *TransactionType `json:"type,omitempty"`
	Since    *time.Time       `json:"since,omitempty"`
	Until    *time.Time       `json:"until,omitempty"`
	Offset   int              `json:"offset,omitempty"`
	Limit    int              `json:"limit,omitempty"`
}

// TrackerStats aggregates the activity log. SuccessRate is
// (signed+confirmed)/total; the latency means cover only entries that
// reached the respective phase.
type TrackerStats struct {
	Total              int                     `json:"total"`
	ByStatus           map[TxStatus]int        `json:"byStatus"`
	ByType             map[TransactionType]int `json:"byType"`
	ByDApp             map[string]int          `json:"byDApp"`
	AvgApprovalLatency time.Duration           `json:"avgApprovalLatency"`
	AvgSigningLatency  time.Duration           `json:"avgSigningLatency"`
	SuccessRate        float64                 `json:"successRate"`
}
