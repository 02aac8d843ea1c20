package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertChannel(ctx context.Context, channel Channel) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO channels (id, name, workspace_id)
		VALUES ($1, $2, $3)
	`, channel.ID, channel.Name, channel.WorkspaceID)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChannel(ctx context.Context, channelID string) (Channel, error) {
	var item Channel
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, workspace_id, created_at
		FROM channels
		WHERE id=$1
	`, channelID).Scan(&item.ID, &item.Name, &item.WorkspaceID, &item.CreatedAt)
	if err != nil {
		return Channel{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListChannels(ctx context.Context, workspaceID string) ([]Channel, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, workspace_id, created_at
		FROM channels
		WHERE workspace_id=$1
		ORDER BY id ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	items := make([]Channel, 0)
	for rows.Next() {
		var item Channel
		if err := rows.Scan(&item.ID, &item.Name, &item.WorkspaceID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateChannelName(ctx context.Context, channelID, name string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE channels SET name=$2 WHERE id=$1`, channelID, name)
	if err != nil {
		return fmt.Errorf("update channel name: %w", err)
	}
	return nil
}

// DeleteChannel removes the channel, its messages (thread replies included)
// and the reactions on them. Callers run it inside WithTx.
func (s *PostgresStore) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := s.q.ExecContext(ctx, `SELECT id FROM channels WHERE id=$1 FOR UPDATE`, channelID); err != nil {
		return fmt.Errorf("lock channel: %w", err)
	}
	const doomed = `
		WITH doomed AS (
			SELECT id FROM messages WHERE channel_id=$1
			UNION
			SELECT id FROM messages WHERE parent_message_id IN (SELECT id FROM messages WHERE channel_id=$1)
		)
	`
	return s.execAll(ctx, "delete channel", []string{
		doomed + `DELETE FROM reactions WHERE message_id IN (SELECT id FROM doomed)`,
		doomed + `DELETE FROM messages WHERE id IN (SELECT id FROM doomed)`,
		`DELETE FROM channels WHERE id=$1`,
	}, channelID)
}
