package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertWorkspace(ctx context.Context, workspace Workspace) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, owner_user_id, join_code)
		VALUES ($1, $2, $3, $4)
	`, workspace.ID, workspace.Name, workspace.OwnerUserID, workspace.JoinCode)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var item Workspace
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, owner_user_id, join_code, created_at
		FROM workspaces
		WHERE id=$1
	`, workspaceID).Scan(&item.ID, &item.Name, &item.OwnerUserID, &item.JoinCode, &item.CreatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return item, nil
}

// ListWorkspacesForUser returns every workspace the user is a member of,
// regardless of who owns it.
func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT w.id, w.name, w.owner_user_id, w.join_code, w.created_at
		FROM members m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.user_id=$1
		ORDER BY m.id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]Workspace, 0)
	for rows.Next() {
		var item Workspace
		if err := rows.Scan(&item.ID, &item.Name, &item.OwnerUserID, &item.JoinCode, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateWorkspaceName(ctx context.Context, workspaceID, name string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE workspaces SET name=$2 WHERE id=$1`, workspaceID, name)
	if err != nil {
		return fmt.Errorf("update workspace name: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateWorkspaceJoinCode(ctx context.Context, workspaceID, joinCode string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE workspaces SET join_code=$2 WHERE id=$1`, workspaceID, joinCode)
	if err != nil {
		return fmt.Errorf("update workspace join code: %w", err)
	}
	return nil
}

// DeleteWorkspace removes the workspace and everything scoped to it. The
// workspace row is locked first so concurrent inserts of children wait and
// then fail their foreign key check instead of surviving the cascade.
// Callers run it inside WithTx.
func (s *PostgresStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	if _, err := s.q.ExecContext(ctx, `SELECT id FROM workspaces WHERE id=$1 FOR UPDATE`, workspaceID); err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}
	return s.execAll(ctx, "delete workspace", []string{
		`DELETE FROM reactions WHERE workspace_id=$1`,
		`DELETE FROM messages WHERE workspace_id=$1`,
		`DELETE FROM conversations WHERE workspace_id=$1`,
		`DELETE FROM channels WHERE workspace_id=$1`,
		`DELETE FROM members WHERE workspace_id=$1`,
		`DELETE FROM workspaces WHERE id=$1`,
	}, workspaceID)
}
