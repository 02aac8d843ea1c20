package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const messageColumns = `id, body, image, member_id, workspace_id, channel_id, conversation_id, parent_message_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		item           Message
		image          sql.NullString
		channelID      sql.NullString
		conversationID sql.NullString
		parentID       sql.NullString
		updatedAt      sql.NullTime
	)
	if err := row.Scan(
		&item.ID, &item.Body, &image, &item.MemberID, &item.WorkspaceID,
		&channelID, &conversationID, &parentID, &item.CreatedAt, &updatedAt,
	); err != nil {
		return Message{}, err
	}
	item.Image = image.String
	item.ChannelID = channelID.String
	item.ConversationID = conversationID.String
	item.ParentMessageID = parentID.String
	if updatedAt.Valid {
		t := updatedAt.Time
		item.UpdatedAt = &t
	}
	return item, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO messages (id, body, image, member_id, workspace_id, channel_id, conversation_id, parent_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		message.ID,
		message.Body,
		nullIfEmpty(message.Image),
		message.MemberID,
		message.WorkspaceID,
		nullIfEmpty(message.ChannelID),
		nullIfEmpty(message.ConversationID),
		nullIfEmpty(message.ParentMessageID),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (Message, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	return scanMessage(row)
}

func (s *PostgresStore) UpdateMessageBody(ctx context.Context, messageID, body string, updatedAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `UPDATE messages SET body=$2, updated_at=$3 WHERE id=$1`, messageID, body, updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update message body: %w", err)
	}
	return nil
}

// DeleteMessage removes the message, its thread replies and every reaction
// attached to either. Callers run it inside WithTx.
func (s *PostgresStore) DeleteMessage(ctx context.Context, messageID string) error {
	if _, err := s.q.ExecContext(ctx, `SELECT id FROM messages WHERE id=$1 FOR UPDATE`, messageID); err != nil {
		return fmt.Errorf("lock message: %w", err)
	}
	return s.execAll(ctx, "delete message", []string{
		`DELETE FROM reactions WHERE message_id=$1 OR message_id IN (SELECT id FROM messages WHERE parent_message_id=$1)`,
		`DELETE FROM messages WHERE id=$1 OR parent_message_id=$1`,
	}, messageID)
}

// ListMessages returns up to limit messages of the exact scope, newest first.
// A non-empty beforeID restricts the page to ids strictly older than it.
func (s *PostgresStore) ListMessages(ctx context.Context, scope MessageScope, beforeID string, limit int) ([]Message, error) {
	var (
		conds []string
		args  []any
	)
	match := func(column, value string) {
		if value == "" {
			conds = append(conds, column+" IS NULL")
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	match("channel_id", scope.ChannelID)
	match("parent_message_id", scope.ParentMessageID)
	match("conversation_id", scope.ConversationID)
	if beforeID != "" {
		args = append(args, beforeID)
		conds = append(conds, fmt.Sprintf("id < $%d", len(args)))
	}
	args = append(args, limit)

	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0, limit)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

// GetThreadStats counts the replies under parentID and loads the newest one.
func (s *PostgresStore) GetThreadStats(ctx context.Context, parentID string) (ThreadStats, error) {
	var stats ThreadStats
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE parent_message_id=$1`, parentID).Scan(&stats.Count); err != nil {
		return ThreadStats{}, fmt.Errorf("count replies: %w", err)
	}
	if stats.Count == 0 {
		return stats, nil
	}
	row := s.q.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE parent_message_id=$1
		ORDER BY id DESC
		LIMIT 1
	`, parentID)
	last, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ThreadStats{}, nil
	}
	if err != nil {
		return ThreadStats{}, fmt.Errorf("latest reply: %w", err)
	}
	stats.Last = &last
	return stats, nil
}
