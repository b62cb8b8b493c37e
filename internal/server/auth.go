package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/auth"
	"github.com/recycle-ai/recycle/internal/redact"
	"github.com/recycle-ai/recycle/internal/session"
)

type userResponse struct {
	User    *session.User `json:"user"`
	Message string        `json:"message,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.auth == nil || s.session == nil {
		writeError(w, http.StatusServiceUnavailable, "Sign-in is not configured", "auth_unavailable")
		return
	}

	var cred auth.Credentials
	if !decodeJSON(w, r, maxJSONBodyBytes, &cred) {
		return
	}
	cred.Email = strings.TrimSpace(cred.Email)
	if cred.Email == "" || cred.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required", "invalid_request_error")
		return
	}

	resp, err := s.auth.Login(r.Context(), cred)
	if err != nil {
		s.activation.Record(r.Context(), activation.BuildParams{Kind: activation.KindLogin, Err: err})
		writeAuthError(w, err)
		return
	}
	if err := s.session.Login(r.Context(), *resp.User); err != nil {
		redact.Logf("auth: persist session: %v", err)
		writeError(w, http.StatusInternalServerError, "Signed in, but the session could not be saved", "session_error")
		return
	}

	s.activation.Record(r.Context(), activation.BuildParams{
		Kind:   activation.KindLogin,
		UserID: string(resp.User.ID),
	})
	writeJSON(w, http.StatusOK, userResponse{User: resp.User, Message: resp.Message})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "Sign-up is not configured", "auth_unavailable")
		return
	}

	var reg auth.Registration
	if !decodeJSON(w, r, maxJSONBodyBytes, &reg) {
		return
	}
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required", "invalid_request_error")
		return
	}

	if err := s.auth.Signup(r.Context(), reg); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Registration successful. You can now sign in."})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.session == nil {
		writeError(w, http.StatusServiceUnavailable, "Sign-in is not configured", "auth_unavailable")
		return
	}

	userID, _ := s.currentUserID()
	err := s.session.Logout(r.Context())
	s.activation.Record(r.Context(), activation.BuildParams{
		Kind:   activation.KindLogout,
		UserID: userID,
		Err:    err,
	})

	var notifyErr *session.NotifyError
	if err != nil && !errors.As(err, &notifyErr) {
		redact.Logf("auth: logout: %v", err)
		writeError(w, http.StatusInternalServerError, "Could not sign out on this device. Please try again.", "session_storage_error")
		return
	}

	// The local session is gone; a failed notification is only a warning.
	resp := userResponse{Message: "Signed out"}
	if notifyErr != nil {
		redact.Logf("auth: logout: %v", err)
		resp.Warning = "Signed out locally, but the sign-in service could not be notified."
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.session == nil {
		writeJSON(w, http.StatusOK, userResponse{})
		return
	}
	u, ok := s.session.Current()
	if !ok {
		writeJSON(w, http.StatusOK, userResponse{})
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: &u})
}

func writeAuthError(w http.ResponseWriter, err error) {
	var ae *auth.Error
	if !errors.As(err, &ae) {
		writeError(w, http.StatusInternalServerError, userMessage(err), "auth_error")
		return
	}
	switch ae.Kind {
	case auth.KindInvalidCredentials:
		writeError(w, http.StatusUnauthorized, ae.UserMessage(), string(ae.Kind))
	case auth.KindRejected:
		writeError(w, http.StatusBadRequest, ae.UserMessage(), string(ae.Kind))
	default:
		writeError(w, http.StatusBadGateway, ae.UserMessage(), string(ae.Kind))
	}
}
