package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nhle/mailtrace/internal/sender"
)

// handleSend composes and dispatches one message on behalf of the
// session user, reusing the credential pair captured at login.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
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
		To              string `json:"to"`
		Subject         string `json:"subject"`
		Content         string `json:"content"`
		IsHTML          bool   `json:"isHtml"`
		IncludeTracking bool   `json:"includeTracking"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	to := strings.TrimSpace(payload.To)
	if to == "" || payload.Subject == "" || payload.Content == "" {
		s.respondError(w, http.StatusBadRequest, "to, subject, and content are required")
		return
	}

	result, err := s.sender.Send(r.Context(), sender.Request{
		To:              to,
		Subject:         payload.Subject,
		Body:            payload.Content,
		IsHTML:          payload.IsHTML,
		IncludeTracking: payload.IncludeTracking,
	}, sender.Credentials{
		UserID:   user.ID,
		Email:    user.Email,
		Password: user.Secret,
	})
	if err != nil {
		switch sender.Classify(err) {
		case sender.KindAuth:
			s.respondError(w, http.StatusUnauthorized, "mail provider rejected credentials")
		case sender.KindConnection:
			s.logger.Error("smtp connection", "error", err)
			s.respondError(w, http.StatusBadGateway, "unable to reach mail provider")
		default:
			s.logger.Error("sending email", "to", to, "error", err)
			s.respondError(w, http.StatusInternalServerError, "failed to send email")
		}
		return
	}

	response := map[string]any{"messageId": result.MessageID}
	if result.TrackingID != "" {
		response["trackingId"] = result.TrackingID
		response["trackingUrl"] = s.sender.TrackingURL(result.TrackingID)
	}
	s.respondJSON(w, http.StatusOK, response)
}
