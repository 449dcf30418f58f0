package handler

import (
	"net/http"

	"github.com/akarpov/svsim/internal/model"
)

// Connect handles POST /sessions/connect
// @Summary      Open a dApp session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request  body      model.ConnectRequest  true  "dApp identifier"
// @Success      200      {object}  model.ConnectResponse
// @Router       /sessions/connect [post]
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req model.ConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := h.service.Connect(req.DApp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ConnectResponse{
		SessionID:   session.ID,
		State:       string(session.State),
		ConnectedAt: session.ConnectedAt,
	})
}

// Authorize handles POST /sessions/authorize?session=
// @Summary      Authorize a session against the vault
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        session  query     string                  true  "Session id"
// @Param        request  body      model.AuthorizeRequest  true  "Requested permissions"
// @Success      200      {object}  model.AuthorizeResult
// @Router       /sessions/authorize [post]
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req model.AuthorizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.service.Authorize(r.URL.Query().Get("session"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SignTransactions handles POST /sessions/sign-transactions?session=
// @Summary      Sign a batch of transactions
// @Description  Items are processed independently and returned in input order; per-item failures never abort the batch
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        session  query     string                         true  "Session id"
// @Param        request  body      model.SignTransactionsRequest  true  "Transaction batch"
// @Success      200      {object}  model.SignResponse
// @Router       /sessions/sign-transactions [post]
func (h *Handler) SignTransactions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req model.SignTransactionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	results, err := h.service.SignTransactions(r.Context(), r.URL.Query().Get("session"), req.Transactions, req.AutoApprove)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SignResponse{Results: results})
}

// SignMessages handles POST /sessions/sign-messages?session=
// @Summary      Sign a batch of off-chain messages
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        session  query     string                     true  "Session id"
// @Param        request  body      model.SignMessagesRequest  true  "Message batch"
// @Success      200      {object}  model.SignResponse
// @Router       /sessions/sign-messages [post]
func (h *Handler) SignMessages(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req model.SignMessagesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	results, err := h.service.SignMessages(r.Context(), r.URL.Query().Get("session"), req.Messages, req.AutoApprove)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.SignResponse{Results: results})
}

// Disconnect handles POST /sessions/disconnect?session=
// @Summary      Close a session
// @Tags         sessions
// @Produce      json
// @Param        session  query     string  true  "Session id"
// @Success      200      {object}  model.VaultActionResponse
// @Router       /sessions/disconnect [post]
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	h.service.Disconnect(r.URL.Query().Get("session"))
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Session disconnected"})
}

// Sessions handles GET /sessions
// @Summary      List live sessions
// @Tags         sessions
// @Produce      json
// @Success      200  {array}  model.Session
// @Router       /sessions [get]
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Sessions())
}

// PendingApprovals handles GET /approvals/pending
// @Summary      List approval requests awaiting a decision
// @Tags         approvals
// @Produce      json
// @Success      200  {object}  model.PendingApprovalsResponse
// @Router       /approvals/pending [get]
func (h *Handler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, model.PendingApprovalsResponse{Requests: h.approver.Pending()})
}

// ApproveRequest handles POST /approvals/approve?id=
// @Summary      Manually approve a pending request
// @Tags         approvals
// @Produce      json
// @Param        id   query     string  true  "Approval request id"
// @Success      200  {object}  model.VaultActionResponse
// @Router       /approvals/approve [post]
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.approver.ApproveRequest(r.URL.Query().Get("id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Request approved"})
}

// RejectRequest handles POST /approvals/reject?id=&reason=
// @Summary      Manually reject a pending request
// @Tags         approvals
// @Produce      json
// @Param        id      query     string  true   "Approval request id"
// @Param        reason  query     string  false  "Rejection reason"
// @Success      200     {object}  model.VaultActionResponse
// @Router       /approvals/reject [post]
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.approver.RejectRequest(r.URL.Query().Get("id"), r.URL.Query().Get("reason")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VaultActionResponse{Success: true, Message: "Request rejected"})
}
