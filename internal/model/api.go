package model

import (
	"encoding/json"
	"time"
)

// ErrorResponse is the consistent JSON structure for all API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// InitializeVaultRequest represents request for POST /vault/initialize.
// Zero timeouts fall back to the vault defaults.
type InitializeVaultRequest struct {
	Network             string `json:"network,omitempty"`
	AutoLockSeconds     int    `json:"autoLockSeconds,omitempty"`
	ConfirmationSeconds int    `json:"confirmationSeconds,omitempty"`
}

// UnlockVaultRequest represents request for POST /vault/unlock
type UnlockVaultRequest struct {
	Password string `json:"password"`
}

// VaultActionResponse represents response for vault lifecycle operations
type VaultActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BackupResponse represents response for GET /vault/backup
type BackupResponse struct {
	Snapshot json.RawMessage `json:"snapshot"`
}

// RestoreRequest represents request for POST /vault/restore
type RestoreRequest struct {
	Snapshot json.RawMessage `json:"snapshot"`
}

// CreateWalletRequest represents request for POST /wallets
type CreateWalletRequest struct {
	Name           string `json:"name"`
	Mnemonic       string `json:"mnemonic,omitempty"`
	DerivationPath string `json:"derivationPath,omitempty"`
	Network        string `json:"network,omitempty"`
}

// Profile converts the request into a wallet profile. A non-empty mnemonic
// turns the call into an import.
func (r CreateWalletRequest) Profile() WalletProfile {
	return WalletProfile{
		Name:           r.Name,
		Mnemonic:       r.Mnemonic,
		DerivationPath: r.DerivationPath,
		Network:        r.Network,
	}
}

// WalletResponse represents a wallet in API responses, without key material.
type WalletResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PublicKey      string    `json:"publicKey"`
	DerivationPath string    `json:"derivationPath"`
	Network        string    `json:"network"`
	AddressQR      string    `json:"addressQR,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastUsed       time.Time `json:"lastUsed"`
}

// NewWalletResponse projects a wallet record into its API shape.
func NewWalletResponse(w *Wallet) WalletResponse {
	return WalletResponse{
		ID:             w.ID,
		Name:           w.Profile.Name,
		PublicKey:      w.PublicKey.String(),
		DerivationPath: w.Profile.DerivationPath,
		Network:        w.Profile.Network,
		AddressQR:      w.AddressQR,
		CreatedAt:      w.CreatedAt,
		LastUsed:       w.LastUsed,
	}
}

// DeriveRequest represents request for POST /wallets/{id}/derive. A
// non-empty Path wins over the individual component fields.
type DeriveRequest struct {
	Path         string `json:"path,omitempty"`
	Account      uint32 `json:"account,omitempty"`
	Change       uint32 `json:"change,omitempty"`
	AddressIndex uint32 `json:"addressIndex,omitempty"`
}

// DeriveResponse represents response for POST /wallets/{id}/derive
type DeriveResponse struct {
	PublicKey      string `json:"publicKey"`
	DerivationPath string `json:"derivationPath"`
}

// ConnectRequest represents request for POST /sessions/connect
type ConnectRequest struct {
	DApp string `json:"dApp"`
}

// ConnectResponse represents response for POST /sessions/connect
type ConnectResponse struct {
	SessionID   string    `json:"sessionId"`
	State       string    `json:"state"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// SignTransactionsRequest represents request for POST /sessions/{id}/sign-transactions
type SignTransactionsRequest struct {
	Transactions []*Transaction `json:"transactions"`
	AutoApprove  bool           `json:"autoApprove,omitempty"`
}

// SignMessagesRequest represents request for POST /sessions/{id}/sign-messages
type SignMessagesRequest struct {
	Messages    [][]byte `json:"messages"`
	AutoApprove bool     `json:"autoApprove,omitempty"`
}

// SignResponse represents response for batch signing operations
type SignResponse struct {
	Results []ItemResult `json:"results"`
}

// PendingApprovalsResponse represents response for GET /approvals/pending
type PendingApprovalsResponse struct {
	Requests []*ApprovalRequest `json:"requests"`
}

// LogResponse represents response for GET /log
type LogResponse struct {
	Entries []*LogEntry `json:"entries"`
	Total   int         `json:"total"`
}
