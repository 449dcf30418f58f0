package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

// Log handles GET /log with walletId, dApp, status, type, since, until,
// offset and limit query parameters.
// @Summary      Query the transaction activity log
// @Description  Filters combine with AND; results come back newest-first
// @Tags         log
// @Produce      json
// @Param        walletId  query     string  false  "Filter by wallet id"
// @Param        dApp      query     string  false  "Filter by dApp identifier"
// @Param        status    query     string  false  "Filter by lifecycle status"
// @Param        type      query     string  false  "Filter by transaction type"
// @Param        since     query     string  false  "RFC 3339 lower bound on creation time"
// @Param        until     query     string  false  "RFC 3339 upper bound on creation time"
// @Param        offset    query     int     false  "Pagination offset"
// @Param        limit     query     int     false  "Pagination limit"
// @Success      200       {object}  model.LogResponse
// @Router       /log [get]
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	q, err := parseLogQuery(r)
	if err != nil {
		h.writeError(w, errs.E(errs.InvalidRequest, "invalid log query", err))
		return
	}
	entries := h.tracker.Query(q)
	writeJSON(w, http.StatusOK, model.LogResponse{Entries: entries, Total: len(entries)})
}

func parseLogQuery(r *http.Request) (model.LogQuery, error) {
	var q model.LogQuery
	params := r.URL.Query()

	if v := params.Get("walletId"); v != "" {
		q.WalletID = &v
	}
	if v := params.Get("dApp"); v != "" {
		q.DApp = &v
	}
	if v := params.Get("status"); v != "" {
		status := model.TxStatus(v)
		q.Status = &status
	}
	if v := params.Get("type"); v != "" {
		txType := model.TransactionType(v)
		q.Type = &txType
	}
	if v := params.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, err
		}
		q.Since = &ts
	}
	if v := params.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, err
		}
		q.Until = &ts
	}
	if v := params.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, err
		}
		q.Offset = n
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, err
		}
		q.Limit = n
	}
	return q, nil
}

// LogStats handles GET /log/stats
// @Summary      Activity log statistics
// @Tags         log
// @Produce      json
// @Success      200  {object}  model.TrackerStats
// @Router       /log/stats [get]
func (h *Handler) LogStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.Stats())
}

// statusResponse is the overall service health view.
type statusResponse struct {
	Vault       model.VaultStatus `json:"vault"`
	Sessions    int               `json:"sessions"`
	DeviceReady bool              `json:"deviceReady"`
}

// Status handles GET /status
// @Summary      Overall simulator status
// @Description  Vault lock state, live session count and device readiness
// @Tags         status
// @Produce      json
// @Success      200  {object}  handler.statusResponse
// @Router       /status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Vault:       h.vault.Status(),
		Sessions:    len(h.service.Sessions()),
		DeviceReady: h.devices.Ready(),
	})
}
