package app

import (
	"net/http"
	"strconv"
)

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignUp(r.Context(), body.Name, body.Email, body.Password)
	s.writeResult(w, r, session, err)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	s.writeResult(w, r, session, err)
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	s.writeResult(w, r, session, err)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	if err := s.service.Logout(r.Context(), body.RefreshToken); err != nil {
		s.logger.Warn("Logout failed", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.CurrentUser(r.Context(), s.caller(r))
	s.writeResult(w, r, user, err)
}

func (s *HTTPServer) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListWorkspaces(r.Context(), s.caller(r))
	s.writeResult(w, r, items, err)
}

func (s *HTTPServer) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.CreateWorkspace(r.Context(), s.caller(r), body.Name)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	item, err := s.service.GetWorkspace(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeResult(w, r, item, err)
}

func (s *HTTPServer) handleRenameWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.RenameWorkspace(r.Context(), s.caller(r), r.PathValue("id"), body.Name)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleRemoveWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.RemoveWorkspace(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleWorkspaceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.WorkspaceSummary(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeResult(w, r, summary, err)
}

func (s *HTTPServer) handleJoinWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JoinCode string `json:"joinCode"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.JoinWorkspace(r.Context(), s.caller(r), r.PathValue("id"), body.JoinCode)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleRotateJoinCode(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.RotateJoinCode(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListMembers(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeResult(w, r, items, err)
}

func (s *HTTPServer) handleCurrentMember(w http.ResponseWriter, r *http.Request) {
	member, err := s.service.CurrentMember(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeResult(w, r, member, err)
}

func (s *HTTPServer) handleGetMember(w http.ResponseWriter, r *http.Request) {
	member, err := s.service.GetMember(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeResult(w, r, member, err)
}

func (s *HTTPServer) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.UpdateMemberRole(r.Context(), s.caller(r), r.PathValue("id"), body.Role)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.RemoveMember(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleListChannels(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListChannels(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeResult(w, r, items, err)
}

func (s *HTTPServer) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.CreateChannel(r.Context(), s.caller(r), r.PathValue("id"), body.Name)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := s.service.GetChannel(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeResult(w, r, channel, err)
}

func (s *HTTPServer) handleRenameChannel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.RenameChannel(r.Context(), s.caller(r), r.PathValue("id"), body.Name)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleRemoveChannel(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.RemoveChannel(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleCreateOrGetConversation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MemberID string `json:"memberId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.CreateOrGetConversation(r.Context(), s.caller(r), r.PathValue("id"), body.MemberID)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleListMessages(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	limit, _ := strconv.Atoi(values.Get("limit"))
	page, err := s.service.ListMessages(r.Context(), s.caller(r), MessageQuery{
		ChannelID:       values.Get("channelId"),
		ConversationID:  values.Get("conversationId"),
		ParentMessageID: values.Get("parentMessageId"),
		Cursor:          values.Get("cursor"),
		Limit:           limit,
	})
	s.writeResult(w, r, page, err)
}

func (s *HTTPServer) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var body CreateMessageInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.CreateMessage(r.Context(), s.caller(r), body)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	message, err := s.service.GetMessage(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeResult(w, r, message, err)
}

func (s *HTTPServer) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Body string `json:"body"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.UpdateMessage(r.Context(), s.caller(r), r.PathValue("id"), body.Body)
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleRemoveMessage(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.RemoveMessage(r.Context(), s.caller(r), r.PathValue("id"))
	s.writeID(w, r, id, err)
}

func (s *HTTPServer) handleToggleReaction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	id, err := s.service.ToggleReaction(r.Context(), s.caller(r), r.PathValue("id"), body.Value)
	s.writeID(w, r, id, err)
}

// handleUpload takes the raw image as the request body.
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	caller := s.caller(r)
	if !caller.Authenticated() {
		s.writeResult(w, r, nil, ErrUnauthorized)
		return
	}
	if r.ContentLength <= 0 {
		writeError(w, http.StatusLengthRequired, "LENGTH_REQUIRED", "Content-Length is required", nil)
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	defer body.Close()
	handle, err := s.service.UploadImage(r.Context(), caller, body, r.ContentLength, r.Header.Get("Content-Type"))
	s.writeResult(w, r, map[string]any{"handle": handle}, err)
}

func (s *HTTPServer) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.service.GenerateUploadURL(r.Context(), s.caller(r))
	s.writeResult(w, r, ticket, err)
}
