package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/taskchat/internal/models"
	"github.com/xaenox/taskchat/internal/storage"
	"go.uber.org/zap"
)

// DefaultTTL is how long a conversation lives after its last activity
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidRole          = errors.New("invalid message role")
)

// ResolveID returns conversationID, or the user's main conversation id when it is empty
func ResolveID(userID, conversationID string) string {
	if conversationID != "" {
		return conversationID
	}
	return "main_" + userID
}

// Service keeps per-user conversation transcripts with a sliding expiry
type Service struct {
	store  storage.ConversationStore
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store storage.ConversationStore, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// GetOrCreate returns the conversation, creating it if needed, and extends its expiry
func (s *Service) GetOrCreate(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conversationID = ResolveID(userID, conversationID)
	now := s.now()
	conv, err := s.store.TouchConversation(ctx, userID, conversationID, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", conversationID, err)
	}
	return conv, nil
}

// Append adds a message and extends the conversation's expiry
func (s *Service) Append(ctx context.Context, userID, conversationID, role, content string) (*models.Conversation, error) {
	if role != models.RoleUser && role != models.RoleAssistant {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.append(ctx, userID, conversationID, models.Message{Role: role, Content: content})
}

// AppendFile records a file upload as a user message
func (s *Service) AppendFile(ctx context.Context, userID, conversationID, content, fileName string) (*models.Conversation, error) {
	return s.append(ctx, userID, conversationID, models.Message{
		Role:     models.RoleUser,
		Content:  content,
		IsFile:   true,
		FileName: fileName,
	})
}

func (s *Service) append(ctx context.Context, userID, conversationID string, msg models.Message) (*models.Conversation, error) {
	conversationID = ResolveID(userID, conversationID)
	msg.Timestamp = s.now()
	conv, err := s.store.AppendMessage(ctx, userID, conversationID, msg, msg.Timestamp.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to append to conversation %s: %w", conversationID, err)
	}
	return conv, nil
}

// Get returns a live conversation owned by userID
func (s *Service) Get(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conv, err := s.store.FindConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation %s: %w", conversationID, err)
	}
	if conv == nil || conv.Expired(s.now()) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// List returns the user's live conversations, most recently updated first
func (s *Service) List(ctx context.Context, userID string) ([]*models.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	deleted, err := s.store.DeleteConversation(ctx, userID, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	if !deleted {
		return ErrConversationNotFound
	}
	s.logger.Info("Conversation deleted",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID))
	return nil
}

// Sweep removes every conversation past its expiry and returns how many went
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredConversations(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep conversations: %w", err)
	}
	return n, nil
}
