package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"team-tasks/internal/service"
)

// ExportHandler serves CSV downloads.
type ExportHandler struct {
	export *service.ExportService
	logger *slog.Logger
}

func NewExportHandler(export *service.ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{export: export, logger: logger}
}

func (h *ExportHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "tasks.csv", h.export.WriteTasksCSV)
}

func (h *ExportHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "leaderboard.csv", h.export.WriteLeaderboardCSV)
}

// download renders into memory first so a store error can still produce a JSON 500.
func (h *ExportHandler) download(w http.ResponseWriter, r *http.Request, filename string, write func(context.Context, io.Writer) error) {
	var buf bytes.Buffer
	if err := write(r.Context(), &buf); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write csv download", "file", filename, "error", err)
	}
}
