package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"teamchat/api/internal/authpw"
	"teamchat/api/internal/config"
	"teamchat/api/internal/rbac"
	"teamchat/api/internal/store"
)

// Caller is the authenticated user an operation runs on behalf of. The zero
// value means nobody is signed in.
type Caller struct {
	UserID string
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

type dataStore interface {
	store.Queries
	WithTx(context.Context, func(store.Queries) error) error
	Ping(context.Context) error
}

type blobStore interface {
	PutBlob(ctx context.Context, content io.Reader, size int64, contentType string) (string, error)
	ResolveURL(ctx context.Context, handle string) (string, error)
	UploadURL(ctx context.Context) (string, string, error)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, ttl time.Duration) error
	ConsumeRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	blobs     blobStore
	sessions  sessionStore
	passwords *authpw.Service
	logger    *log.Logger
	metrics   *metrics
	now       func() time.Time
}

func New(cfg config.Config, dataStore dataStore, blobs blobStore, sessions sessionStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		blobs:     blobs,
		sessions:  sessions,
		passwords: authpw.NewService(dataStore),
		logger:    logger,
		metrics:   newMetrics(),
		now:       time.Now,
	}
}

// Ping checks each backing service. A nil entry means healthy.
func (s *Service) Ping(ctx context.Context) map[string]error {
	checks := map[string]error{"database": s.store.Ping(ctx)}
	if s.sessions != nil {
		checks["redis"] = s.sessions.Ping(ctx)
	}
	return checks
}

// memberOf resolves the acting member of userID inside workspaceID. A
// missing member is reported as nil without error.
func memberOf(ctx context.Context, q store.Queries, workspaceID, userID string) (*store.Member, error) {
	if workspaceID == "" || userID == "" {
		return nil, nil
	}
	member, err := q.GetMemberByWorkspaceAndUser(ctx, workspaceID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve member: %w", err)
	}
	return &member, nil
}

func requireCaller(caller Caller) error {
	if !caller.Authenticated() {
		return ErrUnauthorized
	}
	return nil
}

func requireMember(ctx context.Context, q store.Queries, caller Caller, workspaceID string) (store.Member, error) {
	if err := requireCaller(caller); err != nil {
		return store.Member{}, err
	}
	member, err := memberOf(ctx, q, workspaceID, caller.UserID)
	if err != nil {
		return store.Member{}, err
	}
	if member == nil {
		return store.Member{}, forbidden("Not a member of this workspace")
	}
	return *member, nil
}

func requireAdmin(ctx context.Context, q store.Queries, caller Caller, workspaceID string) (store.Member, error) {
	member, err := requireMember(ctx, q, caller, workspaceID)
	if err != nil {
		return store.Member{}, err
	}
	if !rbac.Can(rbac.Role(member.Role), rbac.ActionManage) {
		return store.Member{}, forbidden("Admin role required")
	}
	return member, nil
}

// viewerOf is the query-side counterpart of requireMember: absence of a
// caller or a membership yields nil.
func (s *Service) viewerOf(ctx context.Context, caller Caller, workspaceID string) (*store.Member, error) {
	if !caller.Authenticated() {
		return nil, nil
	}
	return memberOf(ctx, s.store, workspaceID, caller.UserID)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}
