package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/xaenox/taskchat/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect selects the SQL flavour used by SQLStorage
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const ticketSequence = "task_ticket"

const taskColumns = `id, ticket_number, user_id, title, description, status, priority, due_date, created_at, updated_at`

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// SQLStorage implements Storage on database/sql. Queries are written with
// numbered placeholders; for SQLite they are rewritten to "?", so every
// placeholder must appear once and in order.
type SQLStorage struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func newSQLStorage(db *sql.DB, dialect Dialect, logger *zap.Logger) (*SQLStorage, error) {
	storage := &SQLStorage{
		db:      db,
		dialect: dialect,
		logger:  logger,
		now:     time.Now,
	}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *SQLStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations/" + string(s.dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *SQLStorage) q(query string) string {
	if s.dialect == DialectSQLite {
		return placeholderPattern.ReplaceAllString(query, "?")
	}
	return query
}

func (s *SQLStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (s *SQLStorage) CreateTask(ctx context.Context, userID string, draft models.TaskDraft) (*models.Task, error) {
	var task *models.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var ticket int64
		err := tx.QueryRowContext(ctx, s.q(`
			INSERT INTO sequences (name, seq) VALUES ($1, 1)
			ON CONFLICT (name) DO UPDATE SET seq = sequences.seq + 1
			RETURNING seq`), ticketSequence).Scan(&ticket)
		if err != nil {
			return fmt.Errorf("error generating ticket number: %w", err)
		}

		task = newTask(userID, ticket, draft, s.now())
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO tasks (`+taskColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`),
			task.ID,
			task.TicketNumber,
			task.UserID,
			task.Title,
			task.Description,
			string(task.Status),
			string(task.Priority),
			nullMillis(task.DueDate),
			toMillis(task.CreatedAt),
			toMillis(task.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("error creating task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *SQLStorage) ListTasks(ctx context.Context, userID string) ([]*models.Task, error) {
	return s.queryTasks(ctx, s.db, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY ticket_number ASC`, userID)
}

func (s *SQLStorage) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	return s.getTask(ctx, s.db, userID, taskID)
}

func (s *SQLStorage) UpdateTask(ctx context.Context, userID, taskID string, patch models.TaskPatch) (*models.Task, error) {
	var task *models.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		task, err = s.getTask(ctx, tx, userID, taskID)
		if err != nil {
			return err
		}

		patch.Apply(task)
		task.UpdatedAt = s.now()

		result, err := tx.ExecContext(ctx, s.q(`
			UPDATE tasks
			SET title = $1, description = $2, status = $3, priority = $4, due_date = $5, updated_at = $6
			WHERE id = $7 AND user_id = $8`),
			task.Title,
			task.Description,
			string(task.Status),
			string(task.Priority),
			nullMillis(task.DueDate),
			toMillis(task.UpdatedAt),
			taskID,
			userID,
		)
		if err != nil {
			return fmt.Errorf("error updating task: %w", err)
		}
		return requireRows(result)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *SQLStorage) DeleteTask(ctx context.Context, userID, taskID string) error {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE id = $1 AND user_id = $2`), taskID, userID)
	if err != nil {
		return fmt.Errorf("error deleting task: %w", err)
	}
	return requireRows(result)
}

func (s *SQLStorage) CompleteAll(ctx context.Context, userID string) ([]*models.Task, error) {
	var updated []*models.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = s.queryTasks(ctx, tx, `
			SELECT `+taskColumns+`
			FROM tasks
			WHERE user_id = $1 AND status <> $2
			ORDER BY ticket_number ASC`, userID, string(models.StatusDone))
		if err != nil {
			return err
		}
		if len(updated) == 0 {
			return nil
		}

		now := s.now()
		_, err = tx.ExecContext(ctx, s.q(`
			UPDATE tasks
			SET status = $1, updated_at = $2
			WHERE user_id = $3 AND status <> $4`),
			string(models.StatusDone), toMillis(now), userID, string(models.StatusDone))
		if err != nil {
			return fmt.Errorf("error completing tasks: %w", err)
		}
		for _, t := range updated {
			t.Status = models.StatusDone
			t.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLStorage) getTask(ctx context.Context, q querier, userID, taskID string) (*models.Task, error) {
	row := q.QueryRowContext(ctx, s.q(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2`), taskID, userID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning task: %w", err)
	}
	return task, nil
}

func (s *SQLStorage) queryTasks(ctx context.Context, q querier, query string, args ...any) ([]*models.Task, error) {
	rows, err := q.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task               models.Task
		status, priority   string
		due                sql.NullInt64
		createdAt, updated int64
	)
	err := row.Scan(
		&task.ID,
		&task.TicketNumber,
		&task.UserID,
		&task.Title,
		&task.Description,
		&status,
		&priority,
		&due,
		&createdAt,
		&updated,
	)
	if err != nil {
		return nil, err
	}

	task.Status = models.TaskStatus(status)
	task.Priority = models.Priority(priority)
	if due.Valid {
		d := fromMillis(due.Int64)
		task.DueDate = &d
	}
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updated)
	return &task, nil
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func requireRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
