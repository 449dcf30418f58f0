package model

import "time"

// ApprovalRequest is one item presented to the simulated approval surface.
// Transaction and Message are mutually exclusive.
type ApprovalRequest struct {
	ID          string              `json:"id"`
	WalletID    string              `json:"walletId"`
	DApp        string              `json:"dApp,omitempty"`
	Transaction *Transaction        `json:"transaction,omitempty"`
	Message     []byte              `json:"message,omitempty"`
	Metadata    TransactionMetadata `json:"metadata"`
	AutoApprove bool                `json:"autoApprove,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// ApprovalDecision is the resolved outcome of an approval request. Manual is
// true when an explicit approve or reject call resolved it before the
// simulated user did.
type ApprovalDecision struct {
	RequestID string    `json:"requestId"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	Manual    bool      `json:"manual,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}
