package events

import (
	"context"
	"time"

	"github.com/xaenox/taskchat/internal/models"
	"github.com/xaenox/taskchat/internal/storage"
)

// TaskStore publishes an event after every successful task write
type TaskStore struct {
	storage.TaskStore
	publisher Publisher
	now       func() time.Time
}

// NewTaskStore wraps next so that writes are announced on publisher
func NewTaskStore(next storage.TaskStore, publisher Publisher) *TaskStore {
	return &TaskStore{
		TaskStore: next,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *TaskStore) CreateTask(ctx context.Context, userID string, draft models.TaskDraft) (*models.Task, error) {
	task, err := s.TaskStore.CreateTask(ctx, userID, draft)
	if err != nil {
		return nil, err
	}
	s.publish(ActionCreate, userID, task.ID, task)
	return task, nil
}

func (s *TaskStore) UpdateTask(ctx context.Context, userID, taskID string, patch models.TaskPatch) (*models.Task, error) {
	task, err := s.TaskStore.UpdateTask(ctx, userID, taskID, patch)
	if err != nil {
		return nil, err
	}
	s.publish(ActionUpdate, userID, task.ID, task)
	return task, nil
}

func (s *TaskStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := s.TaskStore.DeleteTask(ctx, userID, taskID); err != nil {
		return err
	}
	s.publish(ActionDelete, userID, taskID, nil)
	return nil
}

// CompleteAll announces one batch event, and only when something changed
func (s *TaskStore) CompleteAll(ctx context.Context, userID string) ([]*models.Task, error) {
	changed, err := s.TaskStore.CompleteAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		s.publish(ActionBulkMarkComplete, userID, "", changed)
	}
	return changed, nil
}

func (s *TaskStore) publish(action, userID, taskID string, data any) {
	s.publisher.Publish(Event{
		Type:      TypeTaskUpdate,
		Action:    action,
		UserID:    userID,
		TaskID:    taskID,
		Data:      data,
		Timestamp: s.now(),
	})
}
