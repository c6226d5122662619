package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xaenox/taskchat/internal/conversation"
	"go.uber.org/zap"
)

func (h *Handler) handleMainConversation(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	conv, err := h.conversations.GetOrCreate(r.Context(), userID, "")
	if err != nil {
		h.internalError(w, "Failed to load main conversation", userID, err)
		return
	}
	JSON(w, http.StatusOK, conv)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convs, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		h.internalError(w, "Failed to list conversations", userID, err)
		return
	}
	JSON(w, http.StatusOK, convs)
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	conv, err := h.conversations.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, conversation.ErrConversationNotFound) {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.internalError(w, "Failed to load conversation", userID, err)
		return
	}
	JSON(w, http.StatusOK, conv)
}

func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	err := h.conversations.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, conversation.ErrConversationNotFound) {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.internalError(w, "Failed to delete conversation", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) internalError(w http.ResponseWriter, msg, userID string, err error) {
	h.logger.Error(msg, zap.Error(err), zap.String("user_id", userID))
	Error(w, http.StatusInternalServerError, "internal error")
}
