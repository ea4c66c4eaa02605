package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/mailtrace/internal/auth"
	"github.com/nhle/mailtrace/internal/mailbox"
)

// handleLogin verifies the supplied credentials against the mail
// provider before anything touches the database. A failed verification
// must not create or mutate any identity record; a successful one
// upserts the user and replaces the stored secret.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	email, err := auth.NormalizeEmail(payload.Email)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Password == "" {
		s.respondError(w, http.StatusBadRequest, "password is required")
		return
	}

	ctx, cancel := mailboxContext(r)
	defer cancel()

	if err := s.newMailbox(email, payload.Password).Validate(ctx); err != nil {
		if mailbox.IsAuthError(err) {
			s.respondError(w, http.StatusUnauthorized, "invalid mail credentials")
			return
		}
		s.logger.Error("verifying credentials", "email", email, "error", err)
		s.respondError(w, http.StatusBadGateway, "unable to reach mail provider")
		return
	}

	displayName := strings.SplitN(email, "@", 2)[0]
	user, err := s.store.UpsertUser(r.Context(), email, displayName, payload.Password)
	if err != nil {
		s.logger.Error("upserting user", "email", email, "error", err)
		s.respondError(w, http.StatusInternalServerError, "unable to save user")
		return
	}

	now := time.Now()
	token, err := s.sessions.Issue(user.Email, now)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "unable to create session")
		return
	}
	s.setSessionCookie(w, token, now)
	s.respondJSON(w, http.StatusOK, map[string]string{"email": user.Email})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.sessions.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, err := s.sessionUser(r)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"email":       user.Email,
		"displayName": user.DisplayName,
	})
}
