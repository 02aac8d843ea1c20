package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"teamchat/api/internal/pagination"
	"teamchat/api/internal/store"
	"teamchat/api/internal/util"
)

// ScopeKind tells which container a message lives in.
type ScopeKind int

const (
	ScopeChannel ScopeKind = iota + 1
	ScopeConversation
	ScopeThread
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeChannel:
		return "channel"
	case ScopeConversation:
		return "conversation"
	case ScopeThread:
		return "thread"
	default:
		return "unknown"
	}
}

// Scope is a channel, a conversation, or the thread under a parent message.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// ScopeFromIDs picks the scope out of the optional id triple used on the
// wire. A parent message id always means a thread; channelID and
// conversationID then only have to agree with the parent.
func ScopeFromIDs(channelID, conversationID, parentMessageID string) (Scope, error) {
	switch {
	case parentMessageID != "":
		return Scope{Kind: ScopeThread, ID: parentMessageID}, nil
	case channelID != "" && conversationID != "":
		return Scope{}, validationError("A message belongs to a channel or a conversation, not both")
	case channelID != "":
		return Scope{Kind: ScopeChannel, ID: channelID}, nil
	case conversationID != "":
		return Scope{Kind: ScopeConversation, ID: conversationID}, nil
	default:
		return Scope{}, validationError("channelId, conversationId or parentMessageId is required")
	}
}

// resolvedScope is a scope bound to concrete rows: the exact column filter
// for the feed index and the workspace the scope lives in.
type resolvedScope struct {
	workspaceID  string
	filter       store.MessageScope
	conversation *store.Conversation
}

// resolveScope loads the scope's target. Threads inherit channel and
// conversation from their parent. channelID/conversationID, when given for a
// thread, must match the parent.
func resolveScope(ctx context.Context, q store.Queries, scope Scope, channelID, conversationID string) (resolvedScope, error) {
	var resolved resolvedScope
	switch scope.Kind {
	case ScopeChannel:
		channel, err := q.GetChannel(ctx, scope.ID)
		if isNoRows(err) {
			return resolved, notFound("Channel not found")
		}
		if err != nil {
			return resolved, err
		}
		resolved.workspaceID = channel.WorkspaceID
		resolved.filter = store.MessageScope{ChannelID: channel.ID}
	case ScopeConversation:
		conversation, err := q.GetConversation(ctx, scope.ID)
		if isNoRows(err) {
			return resolved, notFound("Conversation not found")
		}
		if err != nil {
			return resolved, err
		}
		resolved.workspaceID = conversation.WorkspaceID
		resolved.filter = store.MessageScope{ConversationID: conversation.ID}
		resolved.conversation = &conversation
	case ScopeThread:
		parent, err := q.GetMessage(ctx, scope.ID)
		if isNoRows(err) {
			return resolved, notFound("Parent message not found")
		}
		if err != nil {
			return resolved, err
		}
		if parent.ParentMessageID != "" {
			return resolved, validationError("Replies cannot have replies")
		}
		if (channelID != "" && channelID != parent.ChannelID) || (conversationID != "" && conversationID != parent.ConversationID) {
			return resolved, validationError("Thread scope does not match its parent message")
		}
		resolved.workspaceID = parent.WorkspaceID
		resolved.filter = store.MessageScope{
			ChannelID:       parent.ChannelID,
			ConversationID:  parent.ConversationID,
			ParentMessageID: parent.ID,
		}
		if parent.ConversationID != "" {
			conversation, err := q.GetConversation(ctx, parent.ConversationID)
			if isNoRows(err) {
				return resolved, notFound("Conversation not found")
			}
			if err != nil {
				return resolved, err
			}
			resolved.conversation = &conversation
		}
	default:
		return resolved, validationError("Unknown message scope")
	}
	return resolved, nil
}

// allows reports whether member may see and post in the scope. Conversations
// are private to their two participants.
func (r resolvedScope) allows(member store.Member) bool {
	if member.WorkspaceID != r.workspaceID {
		return false
	}
	return r.conversation == nil || isParticipant(*r.conversation, member.ID)
}

type CreateMessageInput struct {
	Body            string `json:"body"`
	Image           string `json:"image"`
	WorkspaceID     string `json:"workspaceId"`
	ChannelID       string `json:"channelId"`
	ConversationID  string `json:"conversationId"`
	ParentMessageID string `json:"parentMessageId"`
}

type MessageView struct {
	ID              string            `json:"id"`
	Body            string            `json:"body"`
	Image           string            `json:"image,omitempty"`
	MemberID        string            `json:"memberId"`
	WorkspaceID     string            `json:"workspaceId"`
	ChannelID       string            `json:"channelId,omitempty"`
	ConversationID  string            `json:"conversationId,omitempty"`
	ParentMessageID string            `json:"parentMessageId,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       *time.Time        `json:"updatedAt,omitempty"`
	Member          MemberView        `json:"member"`
	Reactions       []ReactionSummary `json:"reactions"`
}

// FeedItem is a message as it appears in a paginated feed.
type FeedItem struct {
	MessageView
	ThreadCount     int    `json:"threadCount"`
	ThreadImage     string `json:"threadImage,omitempty"`
	ThreadName      string `json:"threadName"`
	ThreadTimestamp int64  `json:"threadTimestamp"`
}

type MessageQuery struct {
	ChannelID       string
	ConversationID  string
	ParentMessageID string
	Cursor          string
	Limit           int
}

func (s *Service) CreateMessage(ctx context.Context, caller Caller, input CreateMessageInput) (string, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Body) == "" && input.Image == "" {
		return "", validationError("Message body is required")
	}
	scope, err := ScopeFromIDs(input.ChannelID, input.ConversationID, input.ParentMessageID)
	if err != nil {
		return "", err
	}
	member, err := requireMember(ctx, s.store, caller, input.WorkspaceID)
	if err != nil {
		return "", err
	}
	resolved, err := resolveScope(ctx, s.store, scope, input.ChannelID, input.ConversationID)
	if err != nil {
		return "", err
	}
	if resolved.workspaceID != member.WorkspaceID {
		return "", notFound("Message scope is not part of this workspace")
	}
	if !resolved.allows(member) {
		return "", forbidden("Not a participant of this conversation")
	}

	message := store.Message{
		ID:              util.NewID("msg"),
		Body:            input.Body,
		Image:           input.Image,
		MemberID:        member.ID,
		WorkspaceID:     member.WorkspaceID,
		ChannelID:       resolved.filter.ChannelID,
		ConversationID:  resolved.filter.ConversationID,
		ParentMessageID: resolved.filter.ParentMessageID,
	}
	if err := s.store.InsertMessage(ctx, message); err != nil {
		return "", err
	}
	return message.ID, nil
}

// authoredByCaller loads a message and checks the caller's member wrote it.
func authoredByCaller(ctx context.Context, q store.Queries, caller Caller, messageID string) (store.Message, error) {
	if err := requireCaller(caller); err != nil {
		return store.Message{}, err
	}
	message, err := q.GetMessage(ctx, messageID)
	if isNoRows(err) {
		return store.Message{}, notFound("Message not found")
	}
	if err != nil {
		return store.Message{}, err
	}
	member, err := memberOf(ctx, q, message.WorkspaceID, caller.UserID)
	if err != nil {
		return store.Message{}, err
	}
	if member == nil || member.ID != message.MemberID {
		return store.Message{}, forbidden("Only the author can change this message")
	}
	return message, nil
}

func (s *Service) UpdateMessage(ctx context.Context, caller Caller, messageID, body string) (string, error) {
	message, err := authoredByCaller(ctx, s.store, caller, messageID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(body) == "" {
		return "", validationError("Message body is required")
	}
	if err := s.store.UpdateMessageBody(ctx, message.ID, body, s.now()); err != nil {
		return "", err
	}
	return message.ID, nil
}

// RemoveMessage deletes a message together with its replies and reactions.
func (s *Service) RemoveMessage(ctx context.Context, caller Caller, messageID string) (string, error) {
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		message, err := authoredByCaller(ctx, q, caller, messageID)
		if err != nil {
			return err
		}
		return q.DeleteMessage(ctx, message.ID)
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// GetMessage returns one enriched message, or nil when it is missing, its
// author cannot be resolved, or the caller may not see it.
func (s *Service) GetMessage(ctx context.Context, caller Caller, messageID string) (*MessageView, error) {
	if !caller.Authenticated() {
		return nil, nil
	}
	message, err := s.store.GetMessage(ctx, messageID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	viewer, err := memberOf(ctx, s.store, message.WorkspaceID, caller.UserID)
	if err != nil || viewer == nil {
		return nil, err
	}
	if message.ConversationID != "" {
		conversation, err := s.store.GetConversation(ctx, message.ConversationID)
		if isNoRows(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !isParticipant(conversation, viewer.ID) {
			return nil, nil
		}
	}
	return s.enrichMessage(ctx, message)
}

// ListMessages returns one newest-first page of the exact scope selected by
// the query ids. Items whose author cannot be resolved are dropped.
func (s *Service) ListMessages(ctx context.Context, caller Caller, query MessageQuery) (pagination.Page[FeedItem], error) {
	empty := pagination.Page[FeedItem]{Page: []FeedItem{}, IsDone: true}
	if !caller.Authenticated() {
		return empty, nil
	}
	scope, err := ScopeFromIDs(query.ChannelID, query.ConversationID, query.ParentMessageID)
	if err != nil {
		return empty, nil
	}
	resolved, err := resolveScope(ctx, s.store, scope, query.ChannelID, query.ConversationID)
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return empty, nil
	}
	if err != nil {
		return empty, err
	}
	viewer, err := memberOf(ctx, s.store, resolved.workspaceID, caller.UserID)
	if err != nil {
		return empty, err
	}
	if viewer == nil || !resolved.allows(*viewer) {
		return empty, nil
	}

	beforeID, err := pagination.Decode(query.Cursor)
	if err != nil {
		return empty, validationError("Invalid cursor")
	}
	limit := pagination.Limit(query.Limit, s.cfg.PageSizeDefault, s.cfg.PageSizeMax)
	rows, err := s.store.ListMessages(ctx, resolved.filter, beforeID, limit+1)
	if err != nil {
		return empty, err
	}

	page := pagination.Page[FeedItem]{Page: make([]FeedItem, 0, limit), IsDone: len(rows) <= limit}
	if !page.IsDone {
		rows = rows[:limit]
		page.ContinueCursor = pagination.Encode(rows[len(rows)-1].ID)
	}
	for _, message := range rows {
		view, err := s.enrichMessage(ctx, message)
		if err != nil {
			return empty, err
		}
		if view == nil {
			s.logger.Debug("Dropping feed item with unresolvable author", "message_id", message.ID, "member_id", message.MemberID)
			continue
		}
		thread, err := s.threadSummary(ctx, message.ID)
		if err != nil {
			return empty, err
		}
		page.Page = append(page.Page, FeedItem{
			MessageView:     *view,
			ThreadCount:     thread.Count,
			ThreadImage:     thread.Image,
			ThreadName:      thread.Name,
			ThreadTimestamp: thread.Timestamp,
		})
	}
	return page, nil
}

// enrichMessage attaches author, attachment URL and reaction summary. A nil
// view means the author member or its user is gone.
func (s *Service) enrichMessage(ctx context.Context, message store.Message) (*MessageView, error) {
	author, err := s.populateMember(ctx, message.MemberID)
	if err != nil || author == nil {
		return nil, err
	}
	reactions, err := s.store.ListReactions(ctx, message.ID)
	if err != nil {
		return nil, err
	}
	return &MessageView{
		ID:              message.ID,
		Body:            message.Body,
		Image:           s.resolveImage(ctx, message.Image),
		MemberID:        message.MemberID,
		WorkspaceID:     message.WorkspaceID,
		ChannelID:       message.ChannelID,
		ConversationID:  message.ConversationID,
		ParentMessageID: message.ParentMessageID,
		CreatedAt:       message.CreatedAt,
		UpdatedAt:       message.UpdatedAt,
		Member:          *author,
		Reactions:       Aggregate(reactions),
	}, nil
}

// resolveImage turns a blob handle into a URL. Failures degrade to no image.
func (s *Service) resolveImage(ctx context.Context, handle string) string {
	if handle == "" || s.blobs == nil {
		return ""
	}
	url, err := s.blobs.ResolveURL(ctx, handle)
	if err != nil {
		s.logger.Warn("Failed to resolve attachment URL", "handle", handle, "err", err)
		return ""
	}
	return url
}
