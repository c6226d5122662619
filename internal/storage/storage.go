package storage

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/taskchat/internal/models"
)

// ErrTaskNotFound is returned when a task does not exist or belongs to another user
var ErrTaskNotFound = errors.New("task not found")

// TaskStore is the task CRUD collaborator. Every operation is keyed by owner.
type TaskStore interface {
	CreateTask(ctx context.Context, userID string, draft models.TaskDraft) (*models.Task, error)
	// ListTasks returns the user's tasks in ticket order.
	ListTasks(ctx context.Context, userID string) ([]*models.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*models.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
	// CompleteAll sets every task not already DONE to DONE in one batch and
	// returns the tasks it changed.
	CompleteAll(ctx context.Context, userID string) ([]*models.Task, error)
}

// ConversationStore persists conversation transcripts.
// Find methods return nil, nil when nothing matches.
type ConversationStore interface {
	FindConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	// TouchConversation creates the conversation if needed and sets its expiry.
	TouchConversation(ctx context.Context, userID, conversationID string, now, expiresAt time.Time) (*models.Conversation, error)
	// AppendMessage creates the conversation if needed, appends msg and
	// moves updatedAt to msg.Timestamp and expiresAt forward.
	AppendMessage(ctx context.Context, userID, conversationID string, msg models.Message, expiresAt time.Time) (*models.Conversation, error)
	// ListConversations returns conversations with expiresAt >= activeAt, most recently updated first.
	ListConversations(ctx context.Context, userID string, activeAt time.Time) ([]*models.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) (bool, error)
	DeleteExpiredConversations(ctx context.Context, now time.Time) (int64, error)
}

// Storage is the full system of record used by the bot
type Storage interface {
	TaskStore
	ConversationStore
	Ping(ctx context.Context) error
	Close() error
}
