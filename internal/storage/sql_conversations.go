package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/taskchat/internal/models"
)

func (s *SQLStorage) FindConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	pk, err := s.findConversationPK(ctx, s.db, userID, conversationID)
	if err != nil || pk == "" {
		return nil, err
	}
	return s.loadConversation(ctx, s.db, pk)
}

func (s *SQLStorage) TouchConversation(ctx context.Context, userID, conversationID string, now, expiresAt time.Time) (*models.Conversation, error) {
	var conv *models.Conversation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		pk, err := s.upsertConversation(ctx, tx, userID, conversationID, now, expiresAt, false)
		if err != nil {
			return err
		}
		conv, err = s.loadConversation(ctx, tx, pk)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *SQLStorage) AppendMessage(ctx context.Context, userID, conversationID string, msg models.Message, expiresAt time.Time) (*models.Conversation, error) {
	var conv *models.Conversation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		pk, err := s.upsertConversation(ctx, tx, userID, conversationID, msg.Timestamp, expiresAt, true)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO conversation_messages (conversation_pk, role, content, created_at, is_file, file_name)
			VALUES ($1, $2, $3, $4, $5, $6)`),
			pk, msg.Role, msg.Content, toMillis(msg.Timestamp), msg.IsFile, msg.FileName)
		if err != nil {
			return fmt.Errorf("error appending message: %w", err)
		}

		conv, err = s.loadConversation(ctx, tx, pk)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *SQLStorage) ListConversations(ctx context.Context, userID string, activeAt time.Time) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id FROM conversations
		WHERE user_id = $1 AND expires_at >= $2
		ORDER BY updated_at DESC`), userID, toMillis(activeAt))
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}

	var pks []string
	for rows.Next() {
		var pk string
		if err := rows.Scan(&pk); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		pks = append(pks, pk)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	convs := make([]*models.Conversation, 0, len(pks))
	for _, pk := range pks {
		conv, err := s.loadConversation(ctx, s.db, pk)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (s *SQLStorage) DeleteConversation(ctx context.Context, userID, conversationID string) (bool, error) {
	deleted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		pk, err := s.findConversationPK(ctx, tx, userID, conversationID)
		if err != nil || pk == "" {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM conversation_messages WHERE conversation_pk = $1`), pk); err != nil {
			return fmt.Errorf("error deleting messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM conversations WHERE id = $1`), pk); err != nil {
			return fmt.Errorf("error deleting conversation: %w", err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (s *SQLStorage) DeleteExpiredConversations(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`
			DELETE FROM conversation_messages
			WHERE conversation_pk IN (SELECT id FROM conversations WHERE expires_at < $1)`), toMillis(now))
		if err != nil {
			return fmt.Errorf("error deleting expired messages: %w", err)
		}

		result, err := tx.ExecContext(ctx, s.q(`DELETE FROM conversations WHERE expires_at < $1`), toMillis(now))
		if err != nil {
			return fmt.Errorf("error deleting expired conversations: %w", err)
		}
		deleted, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("error getting rows affected: %w", err)
		}
		return nil
	})
	return deleted, err
}

func (s *SQLStorage) findConversationPK(ctx context.Context, q querier, userID, conversationID string) (string, error) {
	var pk string
	err := q.QueryRowContext(ctx, s.q(`
		SELECT id FROM conversations
		WHERE user_id = $1 AND conversation_id = $2`), userID, conversationID).Scan(&pk)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error querying conversation: %w", err)
	}
	return pk, nil
}

// upsertConversation returns the primary key of the (user, conversation)
// row, creating it when missing. touchUpdated also moves updated_at.
func (s *SQLStorage) upsertConversation(ctx context.Context, tx *sql.Tx, userID, conversationID string, now, expiresAt time.Time, touchUpdated bool) (string, error) {
	set := `expires_at = excluded.expires_at`
	if touchUpdated {
		set += `, updated_at = excluded.updated_at`
	}

	var pk string
	err := tx.QueryRowContext(ctx, s.q(`
		INSERT INTO conversations (id, user_id, conversation_id, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, conversation_id) DO UPDATE SET `+set+`
		RETURNING id`),
		uuid.New().String(), userID, conversationID, toMillis(now), toMillis(now), toMillis(expiresAt),
	).Scan(&pk)
	if err != nil {
		return "", fmt.Errorf("error upserting conversation: %w", err)
	}
	return pk, nil
}

func (s *SQLStorage) loadConversation(ctx context.Context, q querier, pk string) (*models.Conversation, error) {
	var (
		conv                          models.Conversation
		createdAt, updatedAt, expires int64
	)
	err := q.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, conversation_id, created_at, updated_at, expires_at
		FROM conversations WHERE id = $1`), pk).Scan(
		&conv.ID, &conv.UserID, &conv.ConversationID, &createdAt, &updatedAt, &expires,
	)
	if err != nil {
		return nil, fmt.Errorf("error loading conversation: %w", err)
	}
	conv.CreatedAt = fromMillis(createdAt)
	conv.UpdatedAt = fromMillis(updatedAt)
	conv.ExpiresAt = fromMillis(expires)

	rows, err := q.QueryContext(ctx, s.q(`
		SELECT role, content, created_at, is_file, file_name
		FROM conversation_messages
		WHERE conversation_pk = $1
		ORDER BY id ASC`), pk)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	conv.Messages = []models.Message{}
	for rows.Next() {
		var (
			msg models.Message
			ts  int64
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &ts, &msg.IsFile, &msg.FileName); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		msg.Timestamp = fromMillis(ts)
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return &conv, nil
}
