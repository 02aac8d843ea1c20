package app

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"teamchat/api/internal/store"
)

// memStore is an in-memory dataStore. WithTx serializes transactions and
// restores a snapshot when fn fails, so rollback behaviour can be asserted.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users         map[string]store.User
	workspaces    map[string]store.Workspace
	members       map[string]store.Member
	channels      map[string]store.Channel
	conversations map[string]store.Conversation
	messages      map[string]store.Message
	reactions     map[string]store.Reaction

	pingErr          error
	insertChannelErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]store.User{},
		workspaces:    map[string]store.Workspace{},
		members:       map[string]store.Member{},
		channels:      map[string]store.Channel{},
		conversations: map[string]store.Conversation{},
		messages:      map[string]store.Message{},
		reactions:     map[string]store.Reaction{},
	}
}

type memSnapshot struct {
	users         map[string]store.User
	workspaces    map[string]store.Workspace
	members       map[string]store.Member
	channels      map[string]store.Channel
	conversations map[string]store.Conversation
	messages      map[string]store.Message
	reactions     map[string]store.Reaction
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		users:         cloneMap(m.users),
		workspaces:    cloneMap(m.workspaces),
		members:       cloneMap(m.members),
		channels:      cloneMap(m.channels),
		conversations: cloneMap(m.conversations),
		messages:      cloneMap(m.messages),
		reactions:     cloneMap(m.reactions),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = s.users
	m.workspaces = s.workspaces
	m.members = s.members
	m.channels = s.channels
	m.conversations = s.conversations
	m.messages = s.messages
	m.reactions = s.reactions
}

func (m *memStore) WithTx(_ context.Context, fn func(store.Queries) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (m *memStore) CreateUser(_ context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return store.ErrConflict
		}
	}
	user.CreatedAt = stamp(user.CreatedAt)
	m.users[user.ID] = user
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (m *memStore) InsertWorkspace(_ context.Context, workspace store.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	workspace.CreatedAt = stamp(workspace.CreatedAt)
	m.workspaces[workspace.ID] = workspace
	return nil
}

func (m *memStore) GetWorkspace(_ context.Context, id string) (store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.workspaces[id]; ok {
		return item, nil
	}
	return store.Workspace{}, sql.ErrNoRows
}

func (m *memStore) ListWorkspacesForUser(_ context.Context, userID string) ([]store.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var memberIDs []string
	for _, member := range m.members {
		if member.UserID == userID {
			memberIDs = append(memberIDs, member.ID)
		}
	}
	sort.Strings(memberIDs)
	items := make([]store.Workspace, 0, len(memberIDs))
	for _, id := range memberIDs {
		if ws, ok := m.workspaces[m.members[id].WorkspaceID]; ok {
			items = append(items, ws)
		}
	}
	return items, nil
}

func (m *memStore) UpdateWorkspaceName(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.workspaces[id]; ok {
		item.Name = name
		m.workspaces[id] = item
	}
	return nil
}

func (m *memStore) UpdateWorkspaceJoinCode(_ context.Context, id, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.workspaces[id]; ok {
		item.JoinCode = code
		m.workspaces[id] = item
	}
	return nil
}

func (m *memStore) DeleteWorkspace(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.reactions {
		if v.WorkspaceID == id {
			delete(m.reactions, k)
		}
	}
	for k, v := range m.messages {
		if v.WorkspaceID == id {
			delete(m.messages, k)
		}
	}
	for k, v := range m.conversations {
		if v.WorkspaceID == id {
			delete(m.conversations, k)
		}
	}
	for k, v := range m.channels {
		if v.WorkspaceID == id {
			delete(m.channels, k)
		}
	}
	for k, v := range m.members {
		if v.WorkspaceID == id {
			delete(m.members, k)
		}
	}
	delete(m.workspaces, id)
	return nil
}

func (m *memStore) InsertMember(_ context.Context, member store.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.members {
		if existing.WorkspaceID == member.WorkspaceID && existing.UserID == member.UserID {
			return store.ErrConflict
		}
	}
	member.CreatedAt = stamp(member.CreatedAt)
	m.members[member.ID] = member
	return nil
}

func (m *memStore) GetMember(_ context.Context, id string) (store.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.members[id]; ok {
		return item, nil
	}
	return store.Member{}, sql.ErrNoRows
}

func (m *memStore) GetMemberByWorkspaceAndUser(_ context.Context, workspaceID, userID string) (store.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.members {
		if item.WorkspaceID == workspaceID && item.UserID == userID {
			return item, nil
		}
	}
	return store.Member{}, sql.ErrNoRows
}

func (m *memStore) ListMembers(_ context.Context, workspaceID string) ([]store.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Member, 0)
	for _, item := range m.members {
		if item.WorkspaceID == workspaceID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memStore) CountAdmins(_ context.Context, workspaceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, item := range m.members {
		if item.WorkspaceID == workspaceID && item.Role == "admin" {
			count++
		}
	}
	return count, nil
}

func (m *memStore) UpdateMemberRole(_ context.Context, id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.members[id]; ok {
		item.Role = role
		m.members[id] = item
	}
	return nil
}

// deleteMessagesLocked removes the given messages, their replies and every
// reaction on either.
func (m *memStore) deleteMessagesLocked(doomed map[string]bool) {
	for id, msg := range m.messages {
		if doomed[msg.ParentMessageID] {
			doomed[id] = true
		}
	}
	for k, v := range m.reactions {
		if doomed[v.MessageID] {
			delete(m.reactions, k)
		}
	}
	for id := range doomed {
		delete(m.messages, id)
	}
}

func (m *memStore) DeleteMember(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversations := map[string]bool{}
	for k, v := range m.conversations {
		if v.MemberOneID == id || v.MemberTwoID == id {
			conversations[k] = true
		}
	}
	doomed := map[string]bool{}
	for k, v := range m.messages {
		if v.MemberID == id || conversations[v.ConversationID] {
			doomed[k] = true
		}
	}
	for k, v := range m.reactions {
		if v.MemberID == id {
			delete(m.reactions, k)
		}
	}
	m.deleteMessagesLocked(doomed)
	for k := range conversations {
		delete(m.conversations, k)
	}
	delete(m.members, id)
	return nil
}

func (m *memStore) InsertChannel(_ context.Context, channel store.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertChannelErr != nil {
		return m.insertChannelErr
	}
	channel.CreatedAt = stamp(channel.CreatedAt)
	m.channels[channel.ID] = channel
	return nil
}

func (m *memStore) GetChannel(_ context.Context, id string) (store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.channels[id]; ok {
		return item, nil
	}
	return store.Channel{}, sql.ErrNoRows
}

func (m *memStore) ListChannels(_ context.Context, workspaceID string) ([]store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Channel, 0)
	for _, item := range m.channels {
		if item.WorkspaceID == workspaceID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memStore) UpdateChannelName(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.channels[id]; ok {
		item.Name = name
		m.channels[id] = item
	}
	return nil
}

func (m *memStore) DeleteChannel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doomed := map[string]bool{}
	for k, v := range m.messages {
		if v.ChannelID == id {
			doomed[k] = true
		}
	}
	m.deleteMessagesLocked(doomed)
	delete(m.channels, id)
	return nil
}

func samePair(c store.Conversation, a, b string) bool {
	return (c.MemberOneID == a && c.MemberTwoID == b) || (c.MemberOneID == b && c.MemberTwoID == a)
}

func (m *memStore) InsertConversation(_ context.Context, conversation store.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.conversations {
		if existing.WorkspaceID == conversation.WorkspaceID && samePair(existing, conversation.MemberOneID, conversation.MemberTwoID) {
			return store.ErrConflict
		}
	}
	conversation.CreatedAt = stamp(conversation.CreatedAt)
	m.conversations[conversation.ID] = conversation
	return nil
}

func (m *memStore) GetConversation(_ context.Context, id string) (store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.conversations[id]; ok {
		return item, nil
	}
	return store.Conversation{}, sql.ErrNoRows
}

func (m *memStore) FindConversation(_ context.Context, workspaceID, a, b string) (store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.conversations {
		if item.WorkspaceID == workspaceID && samePair(item, a, b) {
			return item, nil
		}
	}
	return store.Conversation{}, sql.ErrNoRows
}

func (m *memStore) InsertMessage(_ context.Context, message store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	message.CreatedAt = stamp(message.CreatedAt)
	m.messages[message.ID] = message
	return nil
}

func (m *memStore) GetMessage(_ context.Context, id string) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.messages[id]; ok {
		return item, nil
	}
	return store.Message{}, sql.ErrNoRows
}

func (m *memStore) UpdateMessageBody(_ context.Context, id, body string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.messages[id]; ok {
		item.Body = body
		item.UpdatedAt = &updatedAt
		m.messages[id] = item
	}
	return nil
}

func (m *memStore) DeleteMessage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteMessagesLocked(map[string]bool{id: true})
	return nil
}

func (m *memStore) ListMessages(_ context.Context, scope store.MessageScope, beforeID string, limit int) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Message, 0)
	for _, item := range m.messages {
		if item.ChannelID != scope.ChannelID || item.ConversationID != scope.ConversationID || item.ParentMessageID != scope.ParentMessageID {
			continue
		}
		if beforeID != "" && item.ID >= beforeID {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memStore) GetThreadStats(_ context.Context, parentID string) (store.ThreadStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats store.ThreadStats
	for _, item := range m.messages {
		if item.ParentMessageID != parentID {
			continue
		}
		stats.Count++
		if stats.Last == nil || item.ID > stats.Last.ID {
			last := item
			stats.Last = &last
		}
	}
	return stats, nil
}

func (m *memStore) InsertReaction(_ context.Context, reaction store.Reaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reactions {
		if existing.MessageID == reaction.MessageID && existing.MemberID == reaction.MemberID && existing.Value == reaction.Value {
			return existing.ID, nil
		}
	}
	reaction.CreatedAt = stamp(reaction.CreatedAt)
	m.reactions[reaction.ID] = reaction
	return reaction.ID, nil
}

func (m *memStore) DeleteReaction(_ context.Context, messageID, memberID, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.reactions {
		if existing.MessageID == messageID && existing.MemberID == memberID && existing.Value == value {
			delete(m.reactions, id)
			return id, true, nil
		}
	}
	return "", false, nil
}

func (m *memStore) ListReactions(_ context.Context, messageID string) ([]store.Reaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Reaction, 0)
	for _, item := range m.reactions {
		if item.MessageID == messageID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// countMessages and countReactions back the cascade assertions.
func (m *memStore) countMessages(match func(store.Message) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, item := range m.messages {
		if match(item) {
			n++
		}
	}
	return n
}

func (m *memStore) countReactions(match func(store.Reaction) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, item := range m.reactions {
		if match(item) {
			n++
		}
	}
	return n
}

var errInjected = errors.New("injected failure")

var _ dataStore = (*memStore)(nil)
