package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"teamchat/api/internal/auth"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *log.Logger
	mux        *http.ServeMux
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	s := &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		logger:     service.logger,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.mux)
}

func (s *HTTPServer) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/ready", s.handleReady)
	s.mux.Handle("GET /metrics", s.service.metrics.handler())

	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	s.mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	s.mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/users/me", s.handleCurrentUser)

	s.mux.HandleFunc("GET /api/workspaces", s.handleListWorkspaces)
	s.mux.HandleFunc("POST /api/workspaces", s.handleCreateWorkspace)
	s.mux.HandleFunc("GET /api/workspaces/{id}", s.handleGetWorkspace)
	s.mux.HandleFunc("PUT /api/workspaces/{id}", s.handleRenameWorkspace)
	s.mux.HandleFunc("DELETE /api/workspaces/{id}", s.handleRemoveWorkspace)
	s.mux.HandleFunc("GET /api/workspaces/{id}/info", s.handleWorkspaceSummary)
	s.mux.HandleFunc("POST /api/workspaces/{id}/join", s.handleJoinWorkspace)
	s.mux.HandleFunc("POST /api/workspaces/{id}/join-code", s.handleRotateJoinCode)

	s.mux.HandleFunc("GET /api/workspaces/{id}/members", s.handleListMembers)
	s.mux.HandleFunc("GET /api/workspaces/{id}/members/current", s.handleCurrentMember)
	s.mux.HandleFunc("GET /api/members/{id}", s.handleGetMember)
	s.mux.HandleFunc("PATCH /api/members/{id}", s.handleUpdateMemberRole)
	s.mux.HandleFunc("DELETE /api/members/{id}", s.handleRemoveMember)

	s.mux.HandleFunc("GET /api/workspaces/{id}/channels", s.handleListChannels)
	s.mux.HandleFunc("POST /api/workspaces/{id}/channels", s.handleCreateChannel)
	s.mux.HandleFunc("GET /api/channels/{id}", s.handleGetChannel)
	s.mux.HandleFunc("PUT /api/channels/{id}", s.handleRenameChannel)
	s.mux.HandleFunc("DELETE /api/channels/{id}", s.handleRemoveChannel)

	s.mux.HandleFunc("POST /api/workspaces/{id}/conversations", s.handleCreateOrGetConversation)

	s.mux.HandleFunc("GET /api/messages", s.handleListMessages)
	s.mux.HandleFunc("POST /api/messages", s.handleCreateMessage)
	s.mux.HandleFunc("GET /api/messages/{id}", s.handleGetMessage)
	s.mux.HandleFunc("PUT /api/messages/{id}", s.handleUpdateMessage)
	s.mux.HandleFunc("DELETE /api/messages/{id}", s.handleRemoveMessage)
	s.mux.HandleFunc("POST /api/messages/{id}/reactions", s.handleToggleReaction)

	s.mux.HandleFunc("POST /api/uploads", s.handleUpload)
	s.mux.HandleFunc("POST /api/uploads/url", s.handleUploadURL)

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ping(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// caller never fails: a missing or bad token is the anonymous caller, and
// each operation decides what that means.
func (s *HTTPServer) caller(r *http.Request) Caller {
	return s.service.CallerFromToken(bearerToken(r))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(started)
		s.service.metrics.requests.WithLabelValues(route, strconv.Itoa(writer.status)).Inc()
		s.service.metrics.latency.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Info("Request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// writeResult writes payload, or the mapped error when err is set.
func (s *HTTPServer) writeResult(w http.ResponseWriter, r *http.Request, payload any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("Request failed", "path", r.URL.Path, "err", err)
		}
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// writeID is the response shape of every mutation.
func (s *HTTPServer) writeID(w http.ResponseWriter, r *http.Request, id string, err error) {
	s.writeResult(w, r, map[string]any{"id": id}, err)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
