package api

import (
	"log/slog"
	"net/http"

	"team-tasks/internal/service"
)

// SettingsHandler serves the daily digest toggle.
type SettingsHandler struct {
	settings *service.SettingsService
	logger   *slog.Logger
}

func NewSettingsHandler(settings *service.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

func (h *SettingsHandler) GetDigest(w http.ResponseWriter, r *http.Request) {
	value, err := h.settings.DigestValue(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, DigestResponse{Value: value})
}

func (h *SettingsHandler) SetDigest(w http.ResponseWriter, r *http.Request) {
	var req DigestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.settings.SetDigest(r.Context(), req.Value); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, okResponse{OK: true})
}
