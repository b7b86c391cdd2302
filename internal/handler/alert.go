package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/fraudwatch/internal/alert"
	"github.com/dukerupert/fraudwatch/internal/audit"
	"github.com/dukerupert/fraudwatch/internal/auth"
)

const (
	msgListFailed   = "Failed to fetch fraud alerts"
	msgUpdateFailed = "Failed to update fraud alert"
	msgAuditFailed  = "Failed to fetch audit logs"
)

type AlertHandler struct {
	alerts   *alert.Service
	recorder *audit.Recorder
	logger   *slog.Logger
}

func NewAlertHandler(as *alert.Service, rec *audit.Recorder, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: as, recorder: rec, logger: logger}
}

func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.List(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, "error", msgListFailed, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type updateAlertRequest struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (h *AlertHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": alert.MsgMissingFields})
		return
	}

	updated, err := h.alerts.UpdateStatus(r.Context(), alert.UpdateRequest{
		ID:        req.ID,
		Status:    req.Status,
		ActorID:   auth.UserID(r.Context()),
		IPAddress: auditIP(r),
	})
	if err != nil {
		writeFailure(w, r, h.logger, "error", msgUpdateFailed, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AuditLogs returns the newest audit entries. ?limit= is optional.
func (h *AlertHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.recorder.Recent(r.Context(), limit)
	if err != nil {
		writeFailure(w, r, h.logger, "error", msgAuditFailed, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// auditIP is the address recorded against an admin action: the first
// X-Forwarded-For hop, else the Host header.
func auditIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return r.Host
}
