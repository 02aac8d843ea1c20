package app

import (
	"context"

	"teamchat/api/internal/rbac"
	"teamchat/api/internal/store"
)

type UserView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

type MemberView struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	WorkspaceID string   `json:"workspaceId"`
	Role        string   `json:"role"`
	User        UserView `json:"user"`
}

func userView(user store.User) UserView {
	return UserView{ID: user.ID, Name: user.Name, Email: user.Email, Image: user.Image}
}

func memberView(member store.Member, user store.User) MemberView {
	return MemberView{
		ID:          member.ID,
		UserID:      member.UserID,
		WorkspaceID: member.WorkspaceID,
		Role:        member.Role,
		User:        userView(user),
	}
}

// populateMember loads a member with its user. Either one missing yields nil.
func (s *Service) populateMember(ctx context.Context, memberID string) (*MemberView, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, member.UserID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	view := memberView(member, user)
	return &view, nil
}

// ListMembers lists the workspace members with their users. Members whose
// user record is gone are skipped.
func (s *Service) ListMembers(ctx context.Context, caller Caller, workspaceID string) ([]MemberView, error) {
	items := make([]MemberView, 0)
	viewer, err := s.viewerOf(ctx, caller, workspaceID)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return items, nil
	}
	members, err := s.store.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, member := range members {
		user, err := s.store.GetUserByID(ctx, member.UserID)
		if isNoRows(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, memberView(member, user))
	}
	return items, nil
}

func (s *Service) GetMember(ctx context.Context, caller Caller, memberID string) (*MemberView, error) {
	if !caller.Authenticated() {
		return nil, nil
	}
	target, err := s.populateMember(ctx, memberID)
	if err != nil || target == nil {
		return nil, err
	}
	viewer, err := s.viewerOf(ctx, caller, target.WorkspaceID)
	if err != nil || viewer == nil {
		return nil, err
	}
	return target, nil
}

// CurrentMember is the caller's own membership in the workspace.
func (s *Service) CurrentMember(ctx context.Context, caller Caller, workspaceID string) (*MemberView, error) {
	viewer, err := s.viewerOf(ctx, caller, workspaceID)
	if err != nil || viewer == nil {
		return nil, err
	}
	return s.populateMember(ctx, viewer.ID)
}

// UpdateMemberRole changes a member's role. Admin only; the last admin of a
// workspace cannot be demoted.
func (s *Service) UpdateMemberRole(ctx context.Context, caller Caller, memberID, role string) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	newRole, ok := rbac.Parse(role)
	if !ok {
		return "", validationError("Role must be admin or member")
	}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		target, err := q.GetMember(ctx, memberID)
		if isNoRows(err) {
			return notFound("Member not found")
		}
		if err != nil {
			return err
		}
		if _, err := requireAdmin(ctx, q, caller, target.WorkspaceID); err != nil {
			return err
		}
		if target.Role == string(rbac.RoleAdmin) && newRole != rbac.RoleAdmin {
			admins, err := q.CountAdmins(ctx, target.WorkspaceID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
		return q.UpdateMemberRole(ctx, memberID, string(newRole))
	})
	if err != nil {
		return "", err
	}
	return memberID, nil
}

// RemoveMember deletes a member with its messages, reactions and
// conversations. Admins are never removable; a plain member may be removed by
// an admin or may leave on its own.
func (s *Service) RemoveMember(ctx context.Context, caller Caller, memberID string) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		target, err := q.GetMember(ctx, memberID)
		if isNoRows(err) {
			return notFound("Member not found")
		}
		if err != nil {
			return err
		}
		current, err := requireMember(ctx, q, caller, target.WorkspaceID)
		if err != nil {
			return err
		}
		if target.Role == string(rbac.RoleAdmin) {
			return ErrAdminNotRemovable
		}
		if current.ID != target.ID && !rbac.Can(rbac.Role(current.Role), rbac.ActionManage) {
			return forbidden("Admin role required")
		}
		return q.DeleteMember(ctx, memberID)
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("Member removed", "member_id", memberID, "user_id", caller.UserID)
	return memberID, nil
}
