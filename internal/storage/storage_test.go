package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xaenox/taskchat/internal/models"
	"go.uber.org/zap/zaptest"
)

func testStores(t *testing.T) map[string]Storage {
	t.Helper()

	sqliteStore, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "tasks.db"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to open sqlite storage: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqliteStore,
	}
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			first, err := store.CreateTask(ctx, "u1", models.TaskDraft{Title: "Buy groceries", Priority: models.PriorityLow})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			second, err := store.CreateTask(ctx, "u1", models.TaskDraft{Title: "Call mom"})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if second.TicketNumber <= first.TicketNumber {
				t.Fatalf("ticket numbers not increasing: %d then %d", first.TicketNumber, second.TicketNumber)
			}
			if first.Status != models.StatusTodo {
				t.Fatalf("expected new task to be TODO, got %s", first.Status)
			}
			if second.Priority != models.PriorityMedium {
				t.Fatalf("expected default priority MEDIUM, got %s", second.Priority)
			}

			tasks, err := store.ListTasks(ctx, "u1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(tasks) != 2 || tasks[0].ID != first.ID || tasks[1].ID != second.ID {
				t.Fatalf("unexpected list order: %+v", tasks)
			}

			other, err := store.ListTasks(ctx, "u2")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(other) != 0 {
				t.Fatalf("expected no tasks for another user, got %d", len(other))
			}

			high := models.PriorityHigh
			updated, err := store.UpdateTask(ctx, "u1", first.ID, models.TaskPatch{Priority: &high})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.Priority != models.PriorityHigh || updated.Title != "Buy groceries" {
				t.Fatalf("partial update went wrong: %+v", updated)
			}

			if _, err := store.UpdateTask(ctx, "u2", first.ID, models.TaskPatch{Priority: &high}); !errors.Is(err, ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound for foreign update, got %v", err)
			}

			if err := store.DeleteTask(ctx, "u1", first.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := store.GetTask(ctx, "u1", first.ID); !errors.Is(err, ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound after delete, got %v", err)
			}
			if err := store.DeleteTask(ctx, "u1", first.ID); !errors.Is(err, ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound on second delete, got %v", err)
			}
		})
	}
}

func TestTaskDueDateRoundTrip(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			created, err := store.CreateTask(ctx, "u1", models.TaskDraft{Title: "Study", DueDate: &due})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			got, err := store.GetTask(ctx, "u1", created.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.DueDate == nil || !got.DueDate.Equal(due) {
				t.Fatalf("expected due date %v, got %v", due, got.DueDate)
			}
		})
	}
}

func TestCreateTaskUnknownStatusBecomesTodo(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			task, err := store.CreateTask(ctx, "u1", models.TaskDraft{Title: "Call plumber", Status: "BOGUS"})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if task.Status != models.StatusTodo {
				t.Fatalf("expected TODO, got %s", task.Status)
			}
			got, err := store.GetTask(ctx, "u1", task.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != models.StatusTodo {
				t.Fatalf("expected stored TODO, got %s", got.Status)
			}
		})
	}
}

func TestCompleteAll(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			var ids []string
			for _, title := range []string{"a", "b", "c"} {
				task, err := store.CreateTask(ctx, "u1", models.TaskDraft{Title: title})
				if err != nil {
					t.Fatalf("create: %v", err)
				}
				ids = append(ids, task.ID)
			}
			done := models.StatusDone
			if _, err := store.UpdateTask(ctx, "u1", ids[1], models.TaskPatch{Status: &done}); err != nil {
				t.Fatalf("update: %v", err)
			}

			updated, err := store.CompleteAll(ctx, "u1")
			if err != nil {
				t.Fatalf("complete all: %v", err)
			}
			if len(updated) != 2 {
				t.Fatalf("expected 2 updated tasks, got %d", len(updated))
			}
			for _, task := range updated {
				if task.Status != models.StatusDone {
					t.Fatalf("returned task not DONE: %+v", task)
				}
			}

			again, err := store.CompleteAll(ctx, "u1")
			if err != nil {
				t.Fatalf("complete all: %v", err)
			}
			if len(again) != 0 {
				t.Fatalf("expected 0 updated tasks on second call, got %d", len(again))
			}
		})
	}
}

func TestAppendMessageCreatesAndExtends(t *testing.T) {
	ctx := context.Background()
	t1 := time.UnixMilli(1_700_000_000_000).UTC()
	t2 := t1.Add(time.Minute)
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			missing, err := store.FindConversation(ctx, "u1", "main_u1")
			if err != nil || missing != nil {
				t.Fatalf("expected nil, nil for missing conversation, got %v, %v", missing, err)
			}

			conv, err := store.AppendMessage(ctx, "u1", "main_u1",
				models.Message{Role: models.RoleUser, Content: "hello", Timestamp: t1}, t1.Add(7*24*time.Hour))
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			if conv.ID == "" || len(conv.Messages) != 1 {
				t.Fatalf("unexpected conversation after first append: %+v", conv)
			}

			conv, err = store.AppendMessage(ctx, "u1", "main_u1",
				models.Message{Role: models.RoleAssistant, Content: "hi", Timestamp: t2, IsFile: true, FileName: "notes.txt"}, t2.Add(7*24*time.Hour))
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			if len(conv.Messages) != 2 {
				t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
			}
			if conv.Messages[0].Content != "hello" || conv.Messages[1].Content != "hi" {
				t.Fatalf("messages out of order: %+v", conv.Messages)
			}
			if !conv.Messages[1].IsFile || conv.Messages[1].FileName != "notes.txt" {
				t.Fatalf("file flags lost: %+v", conv.Messages[1])
			}
			if !conv.CreatedAt.Equal(t1) || !conv.UpdatedAt.Equal(t2) {
				t.Fatalf("unexpected timestamps: created %v updated %v", conv.CreatedAt, conv.UpdatedAt)
			}
			if !conv.ExpiresAt.Equal(t2.Add(7 * 24 * time.Hour)) {
				t.Fatalf("expiry not extended: %v", conv.ExpiresAt)
			}
		})
	}
}

func TestTouchConversationKeepsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	t1 := time.UnixMilli(1_700_000_000_000).UTC()
	t2 := t1.Add(time.Hour)
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.TouchConversation(ctx, "u1", "c1", t1, t1.Add(time.Hour)); err != nil {
				t.Fatalf("touch: %v", err)
			}
			conv, err := store.TouchConversation(ctx, "u1", "c1", t2, t2.Add(time.Hour))
			if err != nil {
				t.Fatalf("touch: %v", err)
			}
			if !conv.UpdatedAt.Equal(t1) {
				t.Fatalf("touch should not move updatedAt, got %v", conv.UpdatedAt)
			}
			if !conv.ExpiresAt.Equal(t2.Add(time.Hour)) {
				t.Fatalf("touch should extend expiry, got %v", conv.ExpiresAt)
			}
		})
	}
}

func TestExpiredConversations(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			msg := models.Message{Role: models.RoleUser, Content: "x", Timestamp: now.Add(-8 * 24 * time.Hour)}
			if _, err := store.AppendMessage(ctx, "u1", "old", msg, now.Add(-time.Hour)); err != nil {
				t.Fatalf("append: %v", err)
			}
			msg.Timestamp = now
			if _, err := store.AppendMessage(ctx, "u1", "fresh", msg, now.Add(time.Hour)); err != nil {
				t.Fatalf("append: %v", err)
			}

			active, err := store.ListConversations(ctx, "u1", now)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(active) != 1 || active[0].ConversationID != "fresh" {
				t.Fatalf("expected only the fresh conversation, got %+v", active)
			}

			deleted, err := store.DeleteExpiredConversations(ctx, now)
			if err != nil {
				t.Fatalf("sweep: %v", err)
			}
			if deleted != 1 {
				t.Fatalf("expected 1 deleted conversation, got %d", deleted)
			}
			if conv, _ := store.FindConversation(ctx, "u1", "old"); conv != nil {
				t.Fatal("expired conversation still present")
			}
			if conv, _ := store.FindConversation(ctx, "u1", "fresh"); conv == nil {
				t.Fatal("fresh conversation was deleted")
			}

			ok, err := store.DeleteConversation(ctx, "u1", "fresh")
			if err != nil || !ok {
				t.Fatalf("expected delete to succeed, got %v, %v", ok, err)
			}
			ok, err = store.DeleteConversation(ctx, "u1", "fresh")
			if err != nil || ok {
				t.Fatalf("expected second delete to report false, got %v, %v", ok, err)
			}
		})
	}
}

func TestSQLitePlaceholderRewrite(t *testing.T) {
	s := &SQLStorage{dialect: DialectSQLite}
	got := s.q("a = $1 AND b = $12")
	if got != "a = ? AND b = ?" {
		t.Fatalf("unexpected rewrite: %q", got)
	}

	pg := &SQLStorage{dialect: DialectPostgres}
	if got := pg.q("a = $1"); got != "a = $1" {
		t.Fatalf("postgres query should be untouched, got %q", got)
	}
}
