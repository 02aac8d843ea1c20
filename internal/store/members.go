package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertMember(ctx context.Context, member Member) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO members (id, user_id, workspace_id, role)
		VALUES ($1, $2, $3, $4)
	`, member.ID, member.UserID, member.WorkspaceID, member.Role)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMember(ctx context.Context, memberID string) (Member, error) {
	var item Member
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, role, created_at
		FROM members
		WHERE id=$1
	`, memberID).Scan(&item.ID, &item.UserID, &item.WorkspaceID, &item.Role, &item.CreatedAt)
	if err != nil {
		return Member{}, err
	}
	return item, nil
}

// GetMemberByWorkspaceAndUser resolves the acting member of a user inside a
// workspace through the (workspace_id, user_id) unique key.
func (s *PostgresStore) GetMemberByWorkspaceAndUser(ctx context.Context, workspaceID, userID string) (Member, error) {
	var item Member
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, role, created_at
		FROM members
		WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID).Scan(&item.ID, &item.UserID, &item.WorkspaceID, &item.Role, &item.CreatedAt)
	if err != nil {
		return Member{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, workspaceID string) ([]Member, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, workspace_id, role, created_at
		FROM members
		WHERE workspace_id=$1
		ORDER BY id ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		var item Member
		if err := rows.Scan(&item.ID, &item.UserID, &item.WorkspaceID, &item.Role, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountAdmins(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE workspace_id=$1 AND role='admin'`, workspaceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateMemberRole(ctx context.Context, memberID, role string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE members SET role=$2 WHERE id=$1`, memberID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return nil
}

// doomedByMember selects the messages that go away with a member: the ones
// it wrote and every message of a conversation it takes part in.
const doomedByMember = `
	WITH roots AS (
		SELECT id FROM messages
		WHERE member_id=$1
		   OR conversation_id IN (SELECT id FROM conversations WHERE member_one_id=$1 OR member_two_id=$1)
	), doomed AS (
		SELECT id FROM roots
		UNION
		SELECT id FROM messages WHERE parent_message_id IN (SELECT id FROM roots)
	)
`

// DeleteMember removes the member together with its messages, reactions and
// conversations. Callers run it inside WithTx.
func (s *PostgresStore) DeleteMember(ctx context.Context, memberID string) error {
	if _, err := s.q.ExecContext(ctx, `SELECT id FROM members WHERE id=$1 FOR UPDATE`, memberID); err != nil {
		return fmt.Errorf("lock member: %w", err)
	}
	return s.execAll(ctx, "delete member", []string{
		doomedByMember + `DELETE FROM reactions WHERE member_id=$1 OR message_id IN (SELECT id FROM doomed)`,
		doomedByMember + `DELETE FROM messages WHERE id IN (SELECT id FROM doomed)`,
		`DELETE FROM conversations WHERE member_one_id=$1 OR member_two_id=$1`,
		`DELETE FROM members WHERE id=$1`,
	}, memberID)
}
