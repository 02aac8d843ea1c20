package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"teamchat/api/internal/rbac"
	"teamchat/api/internal/store"
	"teamchat/api/internal/util"
)

const maxWorkspaceNameLength = 80

type WorkspaceView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerUserID string    `json:"ownerUserId"`
	JoinCode    string    `json:"joinCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// WorkspaceSummary is what an invite page may show before joining.
type WorkspaceSummary struct {
	Name     string `json:"name"`
	IsMember bool   `json:"isMember"`
}

func workspaceView(item store.Workspace) WorkspaceView {
	return WorkspaceView{
		ID:          item.ID,
		Name:        item.Name,
		OwnerUserID: item.OwnerUserID,
		JoinCode:    item.JoinCode,
		CreatedAt:   item.CreatedAt,
	}
}

func normalizeWorkspaceName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", validationError("Workspace name is required")
	}
	if utf8.RuneCountInString(trimmed) > maxWorkspaceNameLength {
		return "", validationError(fmt.Sprintf("Workspace name must be at most %d characters", maxWorkspaceNameLength))
	}
	return trimmed, nil
}

// CreateWorkspace creates a workspace owned by the caller, with the caller as
// its first admin and a "general" channel, all in one transaction.
func (s *Service) CreateWorkspace(ctx context.Context, caller Caller, name string) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	cleanName, err := normalizeWorkspaceName(name)
	if err != nil {
		return "", err
	}

	workspace := store.Workspace{
		ID:          util.NewID("wsp"),
		Name:        cleanName,
		OwnerUserID: caller.UserID,
		JoinCode:    util.NewJoinCode(),
	}
	err = s.store.WithTx(ctx, func(q store.Queries) error {
		if err := q.InsertWorkspace(ctx, workspace); err != nil {
			return err
		}
		if err := q.InsertMember(ctx, store.Member{
			ID:          util.NewID("mem"),
			UserID:      caller.UserID,
			WorkspaceID: workspace.ID,
			Role:        string(rbac.RoleAdmin),
		}); err != nil {
			return err
		}
		return q.InsertChannel(ctx, store.Channel{
			ID:          util.NewID("chn"),
			Name:        "general",
			WorkspaceID: workspace.ID,
		})
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("Workspace created", "workspace_id", workspace.ID, "user_id", caller.UserID)
	return workspace.ID, nil
}

// JoinWorkspace enrolls the caller as a plain member when joinCode matches.
func (s *Service) JoinWorkspace(ctx context.Context, caller Caller, workspaceID, joinCode string) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if isNoRows(err) {
		return "", notFound("Workspace not found")
	}
	if err != nil {
		return "", err
	}
	if strings.ToLower(strings.TrimSpace(joinCode)) != workspace.JoinCode {
		return "", ErrInvalidJoinCode
	}
	existing, err := memberOf(ctx, s.store, workspace.ID, caller.UserID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrAlreadyMember
	}
	err = s.store.InsertMember(ctx, store.Member{
		ID:          util.NewID("mem"),
		UserID:      caller.UserID,
		WorkspaceID: workspace.ID,
		Role:        string(rbac.RoleMember),
	})
	if isConflict(err) {
		return "", ErrAlreadyMember
	}
	if err != nil {
		return "", err
	}
	return workspace.ID, nil
}

func (s *Service) RotateJoinCode(ctx context.Context, caller Caller, workspaceID string) (string, error) {
	if _, err := requireAdmin(ctx, s.store, caller, workspaceID); err != nil {
		return "", err
	}
	if err := s.store.UpdateWorkspaceJoinCode(ctx, workspaceID, util.NewJoinCode()); err != nil {
		return "", err
	}
	return workspaceID, nil
}

func (s *Service) RenameWorkspace(ctx context.Context, caller Caller, workspaceID, name string) (string, error) {
	if _, err := requireAdmin(ctx, s.store, caller, workspaceID); err != nil {
		return "", err
	}
	cleanName, err := normalizeWorkspaceName(name)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateWorkspaceName(ctx, workspaceID, cleanName); err != nil {
		return "", err
	}
	return workspaceID, nil
}

// RemoveWorkspace deletes the workspace and everything scoped to it.
func (s *Service) RemoveWorkspace(ctx context.Context, caller Caller, workspaceID string) (string, error) {
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		if _, err := requireAdmin(ctx, q, caller, workspaceID); err != nil {
			return err
		}
		return q.DeleteWorkspace(ctx, workspaceID)
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("Workspace removed", "workspace_id", workspaceID, "user_id", caller.UserID)
	return workspaceID, nil
}

// ListWorkspaces returns every workspace the caller is a member of.
func (s *Service) ListWorkspaces(ctx context.Context, caller Caller) ([]WorkspaceView, error) {
	items := make([]WorkspaceView, 0)
	if !caller.Authenticated() {
		return items, nil
	}
	workspaces, err := s.store.ListWorkspacesForUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	for _, item := range workspaces {
		items = append(items, workspaceView(item))
	}
	return items, nil
}

func (s *Service) GetWorkspace(ctx context.Context, caller Caller, workspaceID string) (*WorkspaceView, error) {
	viewer, err := s.viewerOf(ctx, caller, workspaceID)
	if err != nil || viewer == nil {
		return nil, err
	}
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	view := workspaceView(workspace)
	return &view, nil
}

// WorkspaceSummary exposes the name to any signed-in caller, member or not.
func (s *Service) WorkspaceSummary(ctx context.Context, caller Caller, workspaceID string) (*WorkspaceSummary, error) {
	if !caller.Authenticated() {
		return nil, nil
	}
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	viewer, err := memberOf(ctx, s.store, workspaceID, caller.UserID)
	if err != nil {
		return nil, err
	}
	return &WorkspaceSummary{Name: workspace.Name, IsMember: viewer != nil}, nil
}
