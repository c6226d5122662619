package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/taskchat/internal/models"
)

type conversationKey struct {
	userID         string
	conversationID string
}

type MemoryStorage struct {
	mu            sync.RWMutex
	tasks         map[string][]*models.Task
	ticketSeq     int64
	conversations map[conversationKey]*models.Conversation
	now           func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks:         make(map[string][]*models.Task),
		conversations: make(map[conversationKey]*models.Conversation),
		now:           time.Now,
	}
}

// Task methods
func (s *MemoryStorage) CreateTask(ctx context.Context, userID string, draft models.TaskDraft) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.ticketSeq++
	task := newTask(userID, s.ticketSeq, draft, now)
	s.tasks[userID] = append(s.tasks[userID], task)
	return copyTask(task), nil
}

func (s *MemoryStorage) ListTasks(ctx context.Context, userID string) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(s.tasks[userID]))
	for _, t := range s.tasks[userID] {
		tasks = append(tasks, copyTask(t))
	}
	return tasks, nil
}

func (s *MemoryStorage) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tasks[userID] {
		if t.ID == taskID {
			return copyTask(t), nil
		}
	}
	return nil, ErrTaskNotFound
}

func (s *MemoryStorage) UpdateTask(ctx context.Context, userID, taskID string, patch models.TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks[userID] {
		if t.ID == taskID {
			patch.Apply(t)
			t.UpdatedAt = s.now()
			return copyTask(t), nil
		}
	}
	return nil, ErrTaskNotFound
}

func (s *MemoryStorage) DeleteTask(ctx context.Context, userID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.tasks[userID]
	for i, t := range tasks {
		if t.ID == taskID {
			s.tasks[userID] = append(tasks[:i:i], tasks[i+1:]...)
			return nil
		}
	}
	return ErrTaskNotFound
}

func (s *MemoryStorage) CompleteAll(ctx context.Context, userID string) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var updated []*models.Task
	for _, t := range s.tasks[userID] {
		if t.Status == models.StatusDone {
			continue
		}
		t.Status = models.StatusDone
		t.UpdatedAt = now
		updated = append(updated, copyTask(t))
	}
	return updated, nil
}

// Conversation methods
func (s *MemoryStorage) FindConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if conv, exists := s.conversations[conversationKey{userID, conversationID}]; exists {
		return copyConversation(conv), nil
	}
	return nil, nil
}

func (s *MemoryStorage) TouchConversation(ctx context.Context, userID, conversationID string, now, expiresAt time.Time) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getOrCreateLocked(userID, conversationID, now)
	conv.ExpiresAt = expiresAt
	return copyConversation(conv), nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, userID, conversationID string, msg models.Message, expiresAt time.Time) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getOrCreateLocked(userID, conversationID, msg.Timestamp)
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.Timestamp
	conv.ExpiresAt = expiresAt
	return copyConversation(conv), nil
}

func (s *MemoryStorage) ListConversations(ctx context.Context, userID string, activeAt time.Time) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []*models.Conversation
	for key, conv := range s.conversations {
		if key.userID != userID || conv.ExpiresAt.Before(activeAt) {
			continue
		}
		convs = append(convs, copyConversation(conv))
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (s *MemoryStorage) DeleteConversation(ctx context.Context, userID, conversationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conversationKey{userID, conversationID}
	if _, exists := s.conversations[key]; !exists {
		return false, nil
	}
	delete(s.conversations, key)
	return true, nil
}

func (s *MemoryStorage) DeleteExpiredConversations(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, conv := range s.conversations {
		if conv.Expired(now) {
			delete(s.conversations, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func (s *MemoryStorage) getOrCreateLocked(userID, conversationID string, now time.Time) *models.Conversation {
	key := conversationKey{userID, conversationID}
	conv, exists := s.conversations[key]
	if !exists {
		conv = &models.Conversation{
			ID:             uuid.New().String(),
			UserID:         userID,
			ConversationID: conversationID,
			Messages:       []models.Message{},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		s.conversations[key] = conv
	}
	return conv
}

func newTask(userID string, ticket int64, draft models.TaskDraft, now time.Time) *models.Task {
	status := draft.Status
	switch status {
	case models.StatusTodo, models.StatusInProgress, models.StatusDone:
	default:
		status = models.StatusTodo
	}
	priority := draft.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	task := &models.Task{
		ID:           uuid.New().String(),
		TicketNumber: ticket,
		UserID:       userID,
		Title:        draft.Title,
		Description:  draft.Description,
		Status:       status,
		Priority:     priority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if draft.DueDate != nil {
		due := *draft.DueDate
		task.DueDate = &due
	}
	return task
}

func copyTask(t *models.Task) *models.Task {
	c := *t
	if t.DueDate != nil {
		due := *t.DueDate
		c.DueDate = &due
	}
	return &c
}

func copyConversation(conv *models.Conversation) *models.Conversation {
	c := *conv
	c.Messages = append([]models.Message(nil), conv.Messages...)
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	return &c
}
