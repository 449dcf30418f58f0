// Package handler exposes the vault, the wallet-adapter protocol service
// and the activity log over HTTP. Handlers own method checks and JSON
// encoding; all business rules live in the components they call.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/akarpov/svsim/internal/approval"
	"github.com/akarpov/svsim/internal/device"
	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/logger"
	"github.com/akarpov/svsim/internal/model"
	"github.com/akarpov/svsim/internal/mwa"
	"github.com/akarpov/svsim/internal/tracker"
	"github.com/akarpov/svsim/internal/vault"
)

// Handler bundles the components behind the HTTP facade.
type Handler struct {
	vault    *vault.Vault
	service  *mwa.Service
	tracker  *tracker.Tracker
	approver *approval.Simulator
	devices  *device.Orchestrator
	log      *zap.Logger
}

// New builds the facade handler. log may be nil.
func New(v *vault.Vault, s *mwa.Service, t *tracker.Tracker, a *approval.Simulator, d *device.Orchestrator, log *zap.Logger) *Handler {
	return &Handler{
		vault:    v,
		service:  s,
		tracker:  t,
		approver: a,
		devices:  d,
		log:      logger.OrNop(log),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps taxonomy codes onto HTTP statuses and renders the
// consistent error envelope.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errs.InvalidRequest, errs.InvalidPassword, errs.InvalidMnemonic,
		errs.InvalidDerivationPath, errs.InvalidTransaction,
		errs.TransactionValidationFailed:
		status = http.StatusBadRequest
	case errs.VaultLocked, errs.VaultNotInitialized, errs.SessionNotAuthorized,
		errs.TransactionRejected:
		status = http.StatusForbidden
	case errs.WalletNotFound, errs.SessionNotFound, errs.RequestNotFound,
		errs.TransactionNotFound, errs.NoWalletsAvailable:
		status = http.StatusNotFound
	case errs.DuplicateWallet, errs.InvalidTransition:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error("internal error", zap.Error(err))
	}
	writeJSON(w, status, model.ErrorResponse{Error: err.Error(), Code: string(code)})
}

// requireMethod enforces the handler's HTTP method the way the rest of the
// facade does.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed. Should be "+method, http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decodeBody parses a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			Error: "invalid JSON body: " + err.Error(),
			Code:  string(errs.InvalidRequest),
		})
		return false
	}
	return true
}
