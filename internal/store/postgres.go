package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict reports a unique constraint violation.
var ErrConflict = errors.New("store: unique constraint violation")

const uniqueViolation = "23505"

// Queries is the full set of reads and writes the chat core performs. It is
// satisfied by *PostgresStore both inside and outside a transaction.
type Queries interface {
	CreateUser(context.Context, User) error
	GetUserByID(context.Context, string) (User, error)
	GetUserByEmail(context.Context, string) (User, error)

	InsertWorkspace(context.Context, Workspace) error
	GetWorkspace(context.Context, string) (Workspace, error)
	ListWorkspacesForUser(context.Context, string) ([]Workspace, error)
	UpdateWorkspaceName(context.Context, string, string) error
	UpdateWorkspaceJoinCode(context.Context, string, string) error
	DeleteWorkspace(context.Context, string) error

	InsertMember(context.Context, Member) error
	GetMember(context.Context, string) (Member, error)
	GetMemberByWorkspaceAndUser(context.Context, string, string) (Member, error)
	ListMembers(context.Context, string) ([]Member, error)
	CountAdmins(context.Context, string) (int, error)
	UpdateMemberRole(context.Context, string, string) error
	DeleteMember(context.Context, string) error

	InsertChannel(context.Context, Channel) error
	GetChannel(context.Context, string) (Channel, error)
	ListChannels(context.Context, string) ([]Channel, error)
	UpdateChannelName(context.Context, string, string) error
	DeleteChannel(context.Context, string) error

	InsertConversation(context.Context, Conversation) error
	GetConversation(context.Context, string) (Conversation, error)
	FindConversation(context.Context, string, string, string) (Conversation, error)

	InsertMessage(context.Context, Message) error
	GetMessage(context.Context, string) (Message, error)
	UpdateMessageBody(context.Context, string, string, time.Time) error
	DeleteMessage(context.Context, string) error
	ListMessages(context.Context, MessageScope, string, int) ([]Message, error)
	GetThreadStats(context.Context, string) (ThreadStats, error)

	InsertReaction(context.Context, Reaction) (string, error)
	DeleteReaction(context.Context, string, string, string) (string, bool, error)
	ListReactions(context.Context, string) ([]Reaction, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db *sql.DB
	q  querier
	tx bool
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Calls
// from inside an open transaction reuse it.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Queries) error) error {
	if s.tx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&PostgresStore{db: s.db, q: tx, tx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// execAll runs statements in order, stopping at the first failure.
func (s *PostgresStore) execAll(ctx context.Context, label string, statements []string, args ...any) error {
	for i, statement := range statements {
		if _, err := s.q.ExecContext(ctx, statement, args...); err != nil {
			return fmt.Errorf("%s step %d: %w", label, i+1, err)
		}
	}
	return nil
}
