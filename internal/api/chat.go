package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/xaenox/taskchat/internal/document"
	"github.com/xaenox/taskchat/internal/models"
	"go.uber.org/zap"
)

type messageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	resp := h.chat.ProcessMessage(r.Context(), UserIDFromContext(r.Context()), req.Message, req.ConversationID)
	JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, document.MaxSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, document.ErrTooLarge.Error())
			return
		}
		Error(w, http.StatusBadRequest, "a file is required")
		return
	}
	defer file.Close()

	text, err := document.Extract(header.Filename, file)
	switch {
	case errors.Is(err, document.ErrUnsupportedType):
		Error(w, http.StatusBadRequest, "only .txt, .md and .csv files are supported")
		return
	case errors.Is(err, document.ErrTooLarge):
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		h.logger.Warn("Failed to read upload",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("file_name", header.Filename))
		Error(w, http.StatusBadRequest, "could not read file")
		return
	}

	JSON(w, http.StatusOK, h.chat.ProcessFileUpload(r.Context(), userID, header.Filename, text))
}

func (h *Handler) handleConfirmTasks(w http.ResponseWriter, r *http.Request) {
	var drafts []models.TaskDraft
	if err := json.NewDecoder(r.Body).Decode(&drafts); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := h.chat.ConfirmTaskCreation(r.Context(), UserIDFromContext(r.Context()), drafts)
	JSON(w, http.StatusOK, map[string]string{"response": resp.Text})
}
