// Package api serves the chat assistant over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xaenox/taskchat/internal/chat"
	"github.com/xaenox/taskchat/internal/events"
	"github.com/xaenox/taskchat/internal/models"
	"go.uber.org/zap"
)

// ChatService is the conversational front end of the task store
type ChatService interface {
	ProcessMessage(ctx context.Context, userID, message, conversationID string) chat.Response
	ProcessFileUpload(ctx context.Context, userID, fileName, text string) chat.Response
	ConfirmTaskCreation(ctx context.Context, userID string, drafts []models.TaskDraft) chat.Response
}

// ConversationService reads and removes transcripts
type ConversationService interface {
	GetOrCreate(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	Get(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	List(ctx context.Context, userID string) ([]*models.Conversation, error)
	Delete(ctx context.Context, userID, conversationID string) error
}

// Subscriber hands out per-user event streams
type Subscriber interface {
	Subscribe(userID string) (<-chan events.Event, func())
}

// Pinger is a dependency that can report whether it is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Handler holds the dependencies shared by every route
type Handler struct {
	chat          ChatService
	conversations ConversationService
	subscriber    Subscriber
	checks        map[string]Pinger
	logger        *zap.Logger
}

func NewHandler(chat ChatService, conversations ConversationService, subscriber Subscriber, logger *zap.Logger) *Handler {
	return &Handler{
		chat:          chat,
		conversations: conversations,
		subscriber:    subscriber,
		checks:        make(map[string]Pinger),
		logger:        logger,
	}
}

// AddHealthCheck registers a named dependency for /healthz
func (h *Handler) AddHealthCheck(name string, p Pinger) {
	h.checks[name] = p
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
