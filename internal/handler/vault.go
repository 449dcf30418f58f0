package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/akarpov/svsim/internal/crypto"
	"github.com/akarpov/svsim/internal/model"
)

// InitializeVault handles POST /vault/initialize
// @Summary      Initialize the vault
// @Description  Idempotent; the vault stays locked until an explicit unlock
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        request  body      model.InitializeVaultRequest  true  "Vault configuration"
// @Success      200      {object}  model.VaultActionResponse
// @Router       /vault/initialize [post]
func (h *Handler) InitializeVault(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req model.InitializeVaultRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg := model.VaultConfig{
		Network:             req.Network,
		AutoLockTimeout:     time.Duration(req.AutoLockSeconds) * time.Second,
		ConfirmationTimeout: time.Duration(req.ConfirmationSeconds) * time.Second,
	}
	if err := h.vault.Initialize(r.Context(), cfg); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Vault initialized"})
}

// Unlock handles POST /vault/unlock
// @Summary      Unlock the vault
// @Description  Opens the vault with the given password and starts the auto-lock timer
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        request  body      model.UnlockVaultRequest  true  "Vault password"
// @Success      200      {object}  model.VaultActionResponse
// @Router       /vault/unlock [post]
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req model.UnlockVaultRequest
	if !decodeBody(w, r, &req) {
		return
	}

	password := []byte(req.Password)
	defer clear(password)

	if err := h.vault.Unlock(r.Context(), password); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Vault unlocked"})
}

// Lock handles POST /vault/lock
// @Summary      Lock the vault
// @Tags         vault
// @Produce      json
// @Success      200  {object}  model.VaultActionResponse
// @Router       /vault/lock [post]
func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.vault.Lock(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Vault locked"})
}

// VaultStatus handles GET /vault/status
// @Summary      Vault status
// @Description  Lock state, wallet count and auto-lock deadline; available while locked
// @Tags         vault
// @Produce      json
// @Success      200  {object}  model.VaultStatus
// @Router       /vault/status [get]
func (h *Handler) VaultStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.vault.Status())
}

// ResetVault handles POST /vault/reset
// @Summary      Reset the vault
// @Description  Clears all wallets and persisted data, forcing the vault back to locked
// @Tags         vault
// @Produce      json
// @Success      200  {object}  model.VaultActionResponse
// @Router       /vault/reset [post]
func (h *Handler) ResetVault(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.vault.Reset(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Vault reset"})
}

// Backup handles GET /vault/backup
// @Summary      Backup vault storage
// @Tags         vault
// @Produce      json
// @Success      200  {object}  model.BackupResponse
// @Router       /vault/backup [get]
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	snapshot, err := h.vault.Backup(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.BackupResponse{Snapshot: json.RawMessage(snapshot)})
}

// Restore handles POST /vault/restore
// @Summary      Restore vault storage from a snapshot
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        request  body      model.RestoreRequest  true  "Snapshot"
// @Success      200      {object}  model.VaultActionResponse
// @Router       /vault/restore [post]
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req model.RestoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.vault.Restore(r.Context(), req.Snapshot); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Vault restored"})
}

// Wallets handles GET /wallets (list), POST /wallets (generate or import)
// and DELETE /wallets?id= (delete).
// @Summary      List, create or delete wallets
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        request  body      model.CreateWalletRequest  false  "Wallet profile (POST)"
// @Success      200      {array}   model.WalletResponse
// @Router       /wallets [get]
func (h *Handler) Wallets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		wallets, err := h.vault.ListWallets()
		if err != nil {
			h.writeError(w, err)
			return
		}
		out := make([]model.WalletResponse, len(wallets))
		for i, wlt := range wallets {
			out[i] = model.NewWalletResponse(wlt)
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req model.CreateWalletRequest
		if !decodeBody(w, r, &req) {
			return
		}
		wallet, err := h.vault.GenerateWallet(r.Context(), req.Profile())
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, model.NewWalletResponse(wallet))

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if err := h.vault.DeleteWallet(r.Context(), id); err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Wallet deleted"})

	default:
		http.Error(w, "Method not allowed. Should be GET, POST or DELETE", http.StatusMethodNotAllowed)
	}
}

// ExportWallet handles GET /wallets/export?id=
// @Summary      Export a wallet's mnemonic and profile
// @Tags         wallets
// @Produce      json
// @Param        id   query     string  true  "Wallet id"
// @Success      200  {object}  model.ExportedWallet
// @Router       /wallets/export [get]
func (h *Handler) ExportWallet(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	exported, err := h.vault.ExportWallet(r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exported)
}

// DeriveKeypair handles POST /wallets/derive?id=
// @Summary      Derive a keypair from a wallet's mnemonic
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        id       query     string               true  "Wallet id"
// @Param        request  body      model.DeriveRequest  true  "Derivation path"
// @Success      200      {object}  model.DeriveResponse
// @Router       /wallets/derive [post]
func (h *Handler) DeriveKeypair(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req model.DeriveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := r.URL.Query().Get("id")
	var kp *model.Keypair
	var err error
	var path string
	if req.Path != "" {
		path = req.Path
		kp, err = h.vault.DeriveKeypair(id, req.Path)
	} else {
		components := crypto.SolanaPath(req.Account, req.Change, req.AddressIndex)
		path = components.String()
		kp, err = h.vault.DeriveKeypairFromComponents(id, components)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer kp.Zero()

	writeJSON(w, http.StatusOK, model.DeriveResponse{
		PublicKey:      kp.PublicKey.String(),
		DerivationPath: path,
	})
}

// ConfirmSigning handles POST /vault/confirm?id=&approve=
// @Summary      Resolve a pending signing confirmation
// @Tags         vault
// @Produce      json
// @Param        id       query     string  true  "Confirmation request id"
// @Param        approve  query     bool    true  "Approve or reject"
// @Success      200      {object}  model.VaultActionResponse
// @Router       /vault/confirm [post]
func (h *Handler) ConfirmSigning(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	approve := r.URL.Query().Get("approve") == "true"
	if err := h.vault.ConfirmSigning(r.URL.Query().Get("id"), approve); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Confirmation resolved"})
}
