package store

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	Image        string
	PasswordHash string
	CreatedAt    time.Time
}

type Workspace struct {
	ID          string
	Name        string
	OwnerUserID string
	JoinCode    string
	CreatedAt   time.Time
}

type Member struct {
	ID          string
	UserID      string
	WorkspaceID string
	Role        string
	CreatedAt   time.Time
}

type Channel struct {
	ID          string
	Name        string
	WorkspaceID string
	CreatedAt   time.Time
}

// Conversation is an unordered pair of members. MemberOneID is whoever
// opened it first and carries no other meaning.
type Conversation struct {
	ID          string
	WorkspaceID string
	MemberOneID string
	MemberTwoID string
	CreatedAt   time.Time
}

// Message belongs to a channel or a conversation, and is a thread reply
// when ParentMessageID is set. Empty strings stand for NULL columns.
type Message struct {
	ID              string
	Body            string
	Image           string
	MemberID        string
	WorkspaceID     string
	ChannelID       string
	ConversationID  string
	ParentMessageID string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

type Reaction struct {
	ID          string
	WorkspaceID string
	MessageID   string
	MemberID    string
	Value       string
	CreatedAt   time.Time
}

// MessageScope selects the exact (channel, parent, conversation) combination
// a feed is read from. Empty fields match NULL.
type MessageScope struct {
	ChannelID       string
	ConversationID  string
	ParentMessageID string
}

// ThreadStats describes the replies under one parent message.
type ThreadStats struct {
	Count int
	Last  *Message
}
