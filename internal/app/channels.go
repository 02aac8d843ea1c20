package app

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"teamchat/api/internal/store"
	"teamchat/api/internal/util"
)

const maxChannelNameLength = 80

var whitespaceRun = regexp.MustCompile(`[\s\v\p{Z}]+`)

type ChannelView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	WorkspaceID string    `json:"workspaceId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func channelView(item store.Channel) ChannelView {
	return ChannelView{ID: item.ID, Name: item.Name, WorkspaceID: item.WorkspaceID, CreatedAt: item.CreatedAt}
}

// NormalizeChannelName collapses every whitespace run into one hyphen and
// lowercases the result. Leading and trailing runs are kept as hyphens.
func NormalizeChannelName(name string) string {
	return strings.ToLower(whitespaceRun.ReplaceAllString(name, "-"))
}

func cleanChannelName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", validationError("Channel name is required")
	}
	normalized := NormalizeChannelName(name)
	if utf8.RuneCountInString(normalized) > maxChannelNameLength {
		return "", validationError("Channel name is too long")
	}
	return normalized, nil
}

func (s *Service) CreateChannel(ctx context.Context, caller Caller, workspaceID, name string) (string, error) {
	if _, err := requireAdmin(ctx, s.store, caller, workspaceID); err != nil {
		return "", err
	}
	normalized, err := cleanChannelName(name)
	if err != nil {
		return "", err
	}
	channel := store.Channel{ID: util.NewID("chn"), Name: normalized, WorkspaceID: workspaceID}
	if err := s.store.InsertChannel(ctx, channel); err != nil {
		return "", err
	}
	return channel.ID, nil
}

// channelForAdmin loads a channel and checks the caller administers its
// workspace.
func channelForAdmin(ctx context.Context, q store.Queries, caller Caller, channelID string) (store.Channel, error) {
	if err := requireCaller(caller); err != nil {
		return store.Channel{}, err
	}
	channel, err := q.GetChannel(ctx, channelID)
	if isNoRows(err) {
		return store.Channel{}, notFound("Channel not found")
	}
	if err != nil {
		return store.Channel{}, err
	}
	if _, err := requireAdmin(ctx, q, caller, channel.WorkspaceID); err != nil {
		return store.Channel{}, err
	}
	return channel, nil
}

func (s *Service) RenameChannel(ctx context.Context, caller Caller, channelID, name string) (string, error) {
	channel, err := channelForAdmin(ctx, s.store, caller, channelID)
	if err != nil {
		return "", err
	}
	normalized, err := cleanChannelName(name)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateChannelName(ctx, channel.ID, normalized); err != nil {
		return "", err
	}
	return channel.ID, nil
}

// RemoveChannel deletes the channel with its messages and their reactions.
func (s *Service) RemoveChannel(ctx context.Context, caller Caller, channelID string) (string, error) {
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		channel, err := channelForAdmin(ctx, q, caller, channelID)
		if err != nil {
			return err
		}
		return q.DeleteChannel(ctx, channel.ID)
	})
	if err != nil {
		return "", err
	}
	return channelID, nil
}

func (s *Service) ListChannels(ctx context.Context, caller Caller, workspaceID string) ([]ChannelView, error) {
	items := make([]ChannelView, 0)
	viewer, err := s.viewerOf(ctx, caller, workspaceID)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return items, nil
	}
	channels, err := s.store.ListChannels(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, item := range channels {
		items = append(items, channelView(item))
	}
	return items, nil
}

func (s *Service) GetChannel(ctx context.Context, caller Caller, channelID string) (*ChannelView, error) {
	if !caller.Authenticated() {
		return nil, nil
	}
	channel, err := s.store.GetChannel(ctx, channelID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	viewer, err := s.viewerOf(ctx, caller, channel.WorkspaceID)
	if err != nil || viewer == nil {
		return nil, err
	}
	view := channelView(channel)
	return &view, nil
}
