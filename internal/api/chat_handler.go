package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"

	"team-tasks/internal/service"
)

const maxUploadBytes = 32 << 20

// FileStore persists uploaded attachments and serves them back by stored name.
type FileStore interface {
	Save(name string, r io.Reader) (path string, original string, err error)
	Open(name string) (afero.File, error)
	Remove(path string) error
}

// ChatHandler serves task chat threads and file uploads.
type ChatHandler struct {
	chat   *service.ChatService
	files  FileStore
	logger *slog.Logger
}

func NewChatHandler(chat *service.ChatService, files FileStore, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, files: files, logger: logger}
}

func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	msg, err := h.chat.PostMessage(r.Context(), service.MessageInput{
		TaskID:   chi.URLParam(r, "taskID"),
		SenderID: req.UserID,
		Text:     req.Message,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, newChatResponse(*msg))
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chat.History(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newChatResponses(msgs))
}

// Upload stores the multipart "file" field and posts it to the task chat.
// The form may carry "user_id" and an optional "message".
func (h *ChatHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, r, h.logger, fmt.Errorf("%w: invalid multipart form: %v", service.ErrValidation, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, h.logger, fmt.Errorf("%w: file is required", service.ErrValidation))
		return
	}
	defer file.Close()

	path, original, err := h.files.Save(header.Filename, file)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	msg, err := h.chat.PostMessage(r.Context(), service.MessageInput{
		TaskID:   chi.URLParam(r, "taskID"),
		SenderID: r.FormValue("user_id"),
		Text:     r.FormValue("message"),
		File:     &service.Attachment{Path: path, Name: original},
	})
	if err != nil {
		if rmErr := h.files.Remove(path); rmErr != nil {
			h.logger.Warn("remove orphaned upload", "path", path, "error", rmErr)
		}
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, newChatResponse(*msg))
}

// File serves a stored attachment by the base name returned in a message's file_path.
func (h *ChatHandler) File(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, err := h.files.Open(name)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}
