package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/mailtrace/internal/model"
	"github.com/nhle/mailtrace/internal/store"
)

type trackedEmailView struct {
	ID             string  `json:"id"`
	RecipientEmail string  `json:"recipientEmail"`
	Subject        string  `json:"subject"`
	TrackingID     string  `json:"trackingId"`
	CreatedAt      string  `json:"createdAt"`
	OpenCount      int     `json:"openCount"`
	FirstOpenedAt  *string `json:"firstOpenedAt"`
	LastOpenedAt   *string `json:"lastOpenedAt"`
}

// handleTrackURL enrolls a message in open tracking without sending
// it, for mail composed in an external client.
func (s *Server) handleTrackURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.sessionUser(r)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload struct {
		RecipientEmail string `json:"recipientEmail"`
		Subject        string `json:"subject"`
		Content        string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	recipient := strings.TrimSpace(payload.RecipientEmail)
	if recipient == "" {
		s.respondError(w, http.StatusBadRequest, "recipientEmail is required")
		return
	}

	te, err := s.ledger.Track(r.Context(), user.ID, recipient, payload.Subject, payload.Content)
	if err != nil {
		s.logger.Error("creating tracking entry", "recipient", recipient, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create tracking entry")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"emailId":     te.ID,
		"trackingId":  te.TrackingID,
		"trackingUrl": s.sender.TrackingURL(te.TrackingID),
	})
}

// handleEmails serves the tracking dashboard: the listing with open
// aggregates and statistics (GET), and the reset action (POST).
func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleEmailsList(w, r)
	case http.MethodPost:
		s.handleEmailsAction(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleEmailsList(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessionUser(r)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summaries, err := s.ledger.ListTracked(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("listing tracked emails", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list tracked emails")
		return
	}

	stats, err := s.ledger.Statistics(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("computing statistics", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}

	views := make([]trackedEmailView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, renderTrackedEmail(summary))
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"emails":     views,
		"statistics": stats,
	})
}

func (s *Server) handleEmailsAction(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessionUser(r)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload struct {
		Action  string `json:"action"`
		EmailID string `json:"emailId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if payload.Action != "reset_opens" {
		s.respondError(w, http.StatusBadRequest, "invalid action")
		return
	}
	if payload.EmailID == "" {
		s.respondError(w, http.StatusBadRequest, "emailId is required")
		return
	}

	cleared, err := s.ledger.ResetOpens(r.Context(), payload.EmailID, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "email not found")
			return
		}
		s.logger.Error("resetting opens", "emailId", payload.EmailID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to reset opens")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cleared": cleared,
	})
}

type openView struct {
	ID        string  `json:"id"`
	OpenedAt  string  `json:"openedAt"`
	SourceIP  string  `json:"sourceIp"`
	UserAgent string  `json:"userAgent"`
	IsDeleted bool    `json:"isDeleted"`
	DeletedAt *string `json:"deletedAt"`
}

// handleEmailDetail serves one tracked email with its full open
// history, soft-deleted rows included, scoped to the owner. A missing
// id and someone else's id both answer 404.
func (s *Server) handleEmailDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, err := s.sessionUser(r)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/emails/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusNotFound, "email not found")
		return
	}

	te, err := s.store.GetTrackedEmail(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "email not found")
			return
		}
		s.logger.Error("loading tracked email", "emailId", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load email")
		return
	}

	opens, err := s.store.ListOpens(r.Context(), te.ID, true)
	if err != nil {
		s.logger.Error("listing opens", "emailId", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load opens")
		return
	}

	views := make([]openView, 0, len(opens))
	active := 0
	for _, open := range opens {
		if !open.IsDeleted {
			active++
		}
		views = append(views, openView{
			ID:        open.ID,
			OpenedAt:  open.OpenedAt.UTC().Format(time.RFC3339),
			SourceIP:  open.SourceIP,
			UserAgent: open.UserAgent,
			IsDeleted: open.IsDeleted,
			DeletedAt: formatOptionalTime(open.DeletedAt),
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"email": map[string]string{
			"id":             te.ID,
			"recipientEmail": te.RecipientEmail,
			"subject":        te.Subject,
			"content":        te.Content,
			"trackingId":     te.TrackingID,
			"createdAt":      te.CreatedAt.UTC().Format(time.RFC3339),
		},
		"opens":       views,
		"activeOpens": active,
		"totalOpens":  len(views),
	})
}

func renderTrackedEmail(summary model.TrackedEmailSummary) trackedEmailView {
	return trackedEmailView{
		ID:             summary.ID,
		RecipientEmail: summary.RecipientEmail,
		Subject:        summary.Subject,
		TrackingID:     summary.TrackingID,
		CreatedAt:      summary.CreatedAt.UTC().Format(time.RFC3339),
		OpenCount:      summary.OpenCount,
		FirstOpenedAt:  formatOptionalTime(summary.FirstOpenedAt),
		LastOpenedAt:   formatOptionalTime(summary.LastOpenedAt),
	}
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}
