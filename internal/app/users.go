package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"teamchat/api/internal/auth"
	"teamchat/api/internal/authpw"
	"teamchat/api/internal/session"
	"teamchat/api/internal/store"
	"teamchat/api/internal/util"
)

var (
	errEmailTaken         = domainError(http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
	errInvalidCredentials = domainError(http.StatusUnauthorized, ErrUnauthorized.Code, "Invalid email or password", nil)
)

type Session struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (s *Service) SignUp(ctx context.Context, name, email, password string) (Session, error) {
	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return Session{}, mapPasswordError(err)
	}
	s.logger.Info("User signed up", "user_id", user.ID)
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, mapPasswordError(err)
	}
	return s.issueSession(ctx, user)
}

func mapPasswordError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail), errors.Is(err, authpw.ErrWeakPassword):
		return validationError(err.Error())
	case errors.Is(err, authpw.ErrEmailTaken):
		return errEmailTaken
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return errInvalidCredentials
	default:
		return err
	}
}

// Refresh rotates a refresh token: the old one is consumed and a new session
// is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, ErrUnauthorized
	}
	userID, err := s.sessions.ConsumeRefreshSession(ctx, auth.HashToken(refreshToken))
	if errors.Is(err, session.ErrSessionNotFound) {
		return Session{}, ErrUnauthorized
	}
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if isNoRows(err) {
		return Session{}, ErrUnauthorized
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}
	refresh, err := util.NewToken(32)
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, s.cfg.RefreshTTL); err != nil {
		return Session{}, err
	}
	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		ExpiresAt:    s.now().Add(s.cfg.AccessTTL),
	}, nil
}

// CallerFromToken resolves the caller behind an access token. Missing,
// malformed and expired tokens all yield the zero Caller.
func (s *Service) CallerFromToken(token string) Caller {
	if token == "" {
		return Caller{}
	}
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Caller{}
	}
	return Caller{UserID: claims.Subject}
}

// CurrentUser returns the caller's user record.
func (s *Service) CurrentUser(ctx context.Context, caller Caller) (*UserView, error) {
	if !caller.Authenticated() {
		return nil, nil
	}
	user, err := s.store.GetUserByID(ctx, caller.UserID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	view := userView(user)
	return &view, nil
}
