package store

import (
	"context"
	"fmt"
)

// InsertConversation returns ErrConflict when the unordered member pair
// already has a conversation in the workspace.
func (s *PostgresStore) InsertConversation(ctx context.Context, conversation Conversation) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO conversations (id, workspace_id, member_one_id, member_two_id)
		VALUES ($1, $2, $3, $4)
	`, conversation.ID, conversation.WorkspaceID, conversation.MemberOneID, conversation.MemberTwoID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, conversationID string) (Conversation, error) {
	var item Conversation
	err := s.q.QueryRowContext(ctx, `
		SELECT id, workspace_id, member_one_id, member_two_id, created_at
		FROM conversations
		WHERE id=$1
	`, conversationID).Scan(&item.ID, &item.WorkspaceID, &item.MemberOneID, &item.MemberTwoID, &item.CreatedAt)
	if err != nil {
		return Conversation{}, err
	}
	return item, nil
}

// FindConversation looks up the conversation between two members in either order.
func (s *PostgresStore) FindConversation(ctx context.Context, workspaceID, memberA, memberB string) (Conversation, error) {
	var item Conversation
	err := s.q.QueryRowContext(ctx, `
		SELECT id, workspace_id, member_one_id, member_two_id, created_at
		FROM conversations
		WHERE workspace_id=$1
		  AND LEAST(member_one_id, member_two_id) = LEAST($2::text COLLATE "C", $3::text COLLATE "C")
		  AND GREATEST(member_one_id, member_two_id) = GREATEST($2::text COLLATE "C", $3::text COLLATE "C")
	`, workspaceID, memberA, memberB).Scan(&item.ID, &item.WorkspaceID, &item.MemberOneID, &item.MemberTwoID, &item.CreatedAt)
	if err != nil {
		return Conversation{}, err
	}
	return item, nil
}
