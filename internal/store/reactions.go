package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertReaction stores the reaction and returns its id. When the same
// (message, member, value) triple already exists the existing id is returned.
func (s *PostgresStore) InsertReaction(ctx context.Context, reaction Reaction) (string, error) {
	var id string
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO reactions (id, workspace_id, message_id, member_id, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT reactions_message_member_value_key DO NOTHING
		RETURNING id
	`, reaction.ID, reaction.WorkspaceID, reaction.MessageID, reaction.MemberID, reaction.Value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("insert reaction: %w", err)
	}
	err = s.q.QueryRowContext(ctx, `
		SELECT id FROM reactions WHERE message_id=$1 AND member_id=$2 AND value=$3
	`, reaction.MessageID, reaction.MemberID, reaction.Value).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("load existing reaction: %w", err)
	}
	return id, nil
}

// DeleteReaction removes the (message, member, value) reaction if present,
// returning its id and whether a row was deleted.
func (s *PostgresStore) DeleteReaction(ctx context.Context, messageID, memberID, value string) (string, bool, error) {
	var id string
	err := s.q.QueryRowContext(ctx, `
		DELETE FROM reactions
		WHERE message_id=$1 AND member_id=$2 AND value=$3
		RETURNING id
	`, messageID, memberID, value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("delete reaction: %w", err)
	}
	return id, true, nil
}

// ListReactions returns the reactions of one message in creation order.
func (s *PostgresStore) ListReactions(ctx context.Context, messageID string) ([]Reaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, workspace_id, message_id, member_id, value, created_at
		FROM reactions
		WHERE message_id=$1
		ORDER BY id ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	items := make([]Reaction, 0)
	for rows.Next() {
		var item Reaction
		if err := rows.Scan(&item.ID, &item.WorkspaceID, &item.MessageID, &item.MemberID, &item.Value, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return items, nil
}
