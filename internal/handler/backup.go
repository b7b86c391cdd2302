package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/fraudwatch/internal/backup"
	"github.com/dukerupert/fraudwatch/internal/logging"
	"github.com/dukerupert/fraudwatch/internal/model"
)

const backupListLimit = 50

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

type backupListResponse struct {
	Status  backup.Status  `json:"status"`
	Backups []model.Backup `json:"backups"`
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.manager.List(r.Context(), backupListLimit)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("list backups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch backups"})
		return
	}
	writeJSON(w, http.StatusOK, backupListResponse{Status: h.manager.Status(), Backups: backups})
}

// Run takes a backup immediately and returns its record.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.RunNow(r.Context())
	if errors.Is(err, backup.ErrDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Backups are not configured"})
		return
	}
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("run backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Backup failed"})
		return
	}
	writeJSON(w, http.StatusCreated, b)
}
