package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nhle/mailtrace/internal/content"
	"github.com/nhle/mailtrace/internal/mailbox"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type attachmentView struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type messageView struct {
	ID          string           `json:"id"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Subject     string           `json:"subject"`
	Date        string           `json:"date"`
	Body        string           `json:"body"`
	IsRead      bool             `json:"isRead"`
	Attachments []attachmentView `json:"attachments,omitempty"`
}

// handleInbox serves paginated mailbox listings (GET) and read-state
// toggles (POST). Each request opens its own short-lived session, uses
// it for exactly one logical operation, and closes it on every path.
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleInboxList(w, r)
	case http.MethodPost:
		s.handleInboxAction(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleInboxList(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessionUser(r)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = "INBOX"
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxPageSize {
				limit = maxPageSize
			}
		}
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}
	offset := (page - 1) * limit

	ctx, cancel := mailboxContext(r)
	defer cancel()

	session, err := s.newMailbox(user.Email, user.Secret).Dial(ctx)
	if err != nil {
		s.respondMailboxError(w, err)
		return
	}
	defer session.Close()

	result, err := session.ListMessages(ctx, folder, limit, offset)
	if err != nil {
		s.respondMailboxError(w, err)
		return
	}

	views := make([]messageView, 0, len(result.Messages))
	for _, msg := range result.Messages {
		views = append(views, renderMessage(msg))
	}

	totalPages := 0
	if result.Total > 0 {
		totalPages = (result.Total + limit - 1) / limit
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"emails":     views,
		"folder":     folder,
		"total":      result.Total,
		"page":       page,
		"limit":      limit,
		"totalPages": totalPages,
	})
}

func (s *Server) handleInboxAction(w http.ResponseWriter, r *http.Request) {
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

	var read bool
	switch payload.Action {
	case "mark_read":
		read = true
	case "mark_unread":
		read = false
	default:
		s.respondError(w, http.StatusBadRequest, "invalid action")
		return
	}

	seqNum, err := strconv.ParseUint(payload.EmailID, 10, 32)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid email id")
		return
	}

	ctx, cancel := mailboxContext(r)
	defer cancel()

	session, err := s.newMailbox(user.Email, user.Secret).Dial(ctx)
	if err != nil {
		s.respondMailboxError(w, err)
		return
	}
	defer session.Close()

	if err := session.SetReadState(ctx, "INBOX", uint32(seqNum), read); err != nil {
		s.respondMailboxError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// renderMessage converts a session message into its display form,
// sanitizing HTML bodies and promoting plain text to minimal HTML.
func renderMessage(msg mailbox.Message) messageView {
	body := msg.Body
	if content.IsHTML(body) {
		body = content.Sanitize(body)
	} else {
		body = content.FormatPlainText(body)
	}

	var attachments []attachmentView
	for _, att := range msg.Attachments {
		attachments = append(attachments, attachmentView{
			Filename:    att.Filename,
			ContentType: att.MIMEType,
			Size:        att.Size,
		})
	}

	return messageView{
		ID:          strconv.FormatUint(uint64(msg.SeqNum), 10),
		From:        msg.From,
		To:          msg.To,
		Subject:     msg.Subject,
		Date:        msg.Date.UTC().Format(time.RFC3339),
		Body:        body,
		IsRead:      msg.IsRead,
		Attachments: attachments,
	}
}

// respondMailboxError maps mailbox error types onto HTTP statuses.
// Errors are surfaced, never retried here.
func (s *Server) respondMailboxError(w http.ResponseWriter, err error) {
	switch {
	case mailbox.IsAuthError(err):
		s.respondError(w, http.StatusUnauthorized, "mail provider rejected credentials")
	case mailbox.IsConnectionError(err):
		s.logger.Error("mailbox connection", "error", err)
		s.respondError(w, http.StatusBadGateway, "unable to reach mail provider")
	default:
		s.logger.Error("mailbox operation", "error", err)
		s.respondError(w, http.StatusInternalServerError, "mailbox operation failed")
	}
}
