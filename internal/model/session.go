package model

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// SessionState is the lifecycle state of a dApp session.
type SessionState string

const (
	SessionConnected    SessionState = "connected"
	SessionDisconnected SessionState = "disconnected"
)

// Session is a dApp connection to the wallet-adapter service. Authorized
// flips exactly once, on successful authorization, and the session keeps its
// wallet binding until disconnect.
type Session struct {
	ID           string            `json:"sessionId"`
	DApp         string            `json:"dApp"`
	State        SessionState      `json:"state"`
	Authorized   bool              `json:"authorized"`
	WalletID     string            `json:"walletId,omitempty"`
	PublicKey    *solana.PublicKey `json:"publicKey,omitempty"`
	Permissions  []string          `json:"permissions,omitempty"`
	ConnectedAt  time.Time         `json:"connectedAt"`
	AuthorizedAt *time.Time        `json:"authorizedAt,omitempty"`
	LastActivity time.Time         `json:"lastActivity"`
}

// Clone returns an independent copy safe to hand outside the service.
func (s *Session) Clone() *Session {
	cp := *s
	if s.PublicKey != nil {
		pk := *s.PublicKey
		cp.PublicKey = &pk
	}
	cp.Permissions = append([]string(nil), s.Permissions...)
	if s.AuthorizedAt != nil {
		at := *s.AuthorizedAt
		cp.AuthorizedAt = &at
	}
	return &cp
}

// AuthorizeRequest carries the dApp's authorization parameters.
type AuthorizeRequest struct {
	WalletID    string   `json:"walletId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// AuthorizeResult is returned to the dApp on successful authorization.
type AuthorizeResult struct {
	SessionID    string           `json:"sessionId"`
	WalletID     string           `json:"walletId"`
	PublicKey    solana.PublicKey `json:"publicKey"`
	Permissions  []string         `json:"permissions,omitempty"`
	AuthorizedAt time.Time        `json:"authorizedAt"`
}

// ItemResult is the per-item outcome of a batch signing call. Exactly one of
// Signature or Error is set.
type ItemResult struct {
	Signature  string `json:"signature,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"errorCode,omitempty"`
	TrackingID string `json:"trackingId,omitempty"`
}

// Signed reports whether the item produced a signature.
func (r ItemResult) Signed() bool {
	return r.Error == "" && r.Signature != ""
}
