package app

import (
	"context"

	"teamchat/api/internal/store"
	"teamchat/api/internal/util"
)

// CreateOrGetConversation returns the 1:1 conversation between the caller's
// member and memberID, creating it on first use. Either side may initiate.
func (s *Service) CreateOrGetConversation(ctx context.Context, caller Caller, workspaceID, memberID string) (string, error) {
	current, err := requireMember(ctx, s.store, caller, workspaceID)
	if err != nil {
		return "", err
	}
	other, err := s.store.GetMember(ctx, memberID)
	if isNoRows(err) || (err == nil && other.WorkspaceID != workspaceID) {
		return "", notFound("Member not found")
	}
	if err != nil {
		return "", err
	}

	existing, err := s.store.FindConversation(ctx, workspaceID, current.ID, other.ID)
	if err == nil {
		return existing.ID, nil
	}
	if !isNoRows(err) {
		return "", err
	}

	conversation := store.Conversation{
		ID:          util.NewID("cnv"),
		WorkspaceID: workspaceID,
		MemberOneID: current.ID,
		MemberTwoID: other.ID,
	}
	err = s.store.InsertConversation(ctx, conversation)
	if isConflict(err) {
		// Lost the race against the other side opening the same pair.
		existing, err := s.store.FindConversation(ctx, workspaceID, current.ID, other.ID)
		if err != nil {
			return "", err
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", err
	}
	return conversation.ID, nil
}

func isParticipant(conversation store.Conversation, memberID string) bool {
	return conversation.MemberOneID == memberID || conversation.MemberTwoID == memberID
}
