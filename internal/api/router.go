// Package api assembles the HTTP facade over the vault, the protocol
// service and the activity log.
package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/akarpov/svsim/internal/handler"
)

// SetupRouter registers every facade route on a fresh mux.
func SetupRouter(h *handler.Handler) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Vault lifecycle
	mux.HandleFunc("/vault/initialize", h.InitializeVault)
	mux.HandleFunc("/vault/unlock", h.Unlock)
	mux.HandleFunc("/vault/lock", h.Lock)
	mux.HandleFunc("/vault/status", h.VaultStatus)
	mux.HandleFunc("/vault/reset", h.ResetVault)
	mux.HandleFunc("/vault/backup", h.Backup)
	mux.HandleFunc("/vault/restore", h.Restore)
	mux.HandleFunc("/vault/confirm", h.ConfirmSigning)

	// Wallets
	mux.HandleFunc("/wallets", h.Wallets)
	mux.HandleFunc("/wallets/export", h.ExportWallet)
	mux.HandleFunc("/wallets/derive", h.DeriveKeypair)

	// Wallet-adapter sessions
	mux.HandleFunc("/sessions", h.Sessions)
	mux.HandleFunc("/sessions/connect", h.Connect)
	mux.HandleFunc("/sessions/authorize", h.Authorize)
	mux.HandleFunc("/sessions/sign-transactions", h.SignTransactions)
	mux.HandleFunc("/sessions/sign-messages", h.SignMessages)
	mux.HandleFunc("/sessions/disconnect", h.Disconnect)

	// Approval surface
	mux.HandleFunc("/approvals/pending", h.PendingApprovals)
	mux.HandleFunc("/approvals/approve", h.ApproveRequest)
	mux.HandleFunc("/approvals/reject", h.RejectRequest)

	// Activity log
	mux.HandleFunc("/log", h.Log)
	mux.HandleFunc("/log/stats", h.LogStats)

	// Overall status
	mux.HandleFunc("/status", h.Status)

	return mux
}
