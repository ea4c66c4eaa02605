// Package sender composes outgoing messages, optionally enrolling them
// in open tracking, and dispatches them over SMTP.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailtrace/internal/model"
	"github.com/nhle/mailtrace/internal/tracker"
)

// SentStore persists dispatched-message records.
type SentStore interface {
	CreateSentEmail(ctx context.Context, se model.SentEmail) (*model.SentEmail, error)
}

// Request describes one outgoing message.
type Request struct {
	To              string
	Subject         string
	Body            string
	IsHTML          bool
	IncludeTracking bool
}

// Result reports a successful send.
type Result struct {
	MessageID  string
	TrackingID string
}

// Credentials is the opaque pair forwarded to the SMTP capability,
// plus the owning user for persistence.
type Credentials struct {
	UserID   string
	Email    string
	Password string
}

// Service orchestrates compose, track, send, and record.
type Service struct {
	mail    model.MailConfig
	baseURL string
	ledger  *tracker.Ledger
	sent    SentStore
	logger  *slog.Logger
}

// New creates a sender service. baseURL is the externally reachable
// root the tracking beacons point at.
func New(mail model.MailConfig, baseURL string, ledger *tracker.Ledger, sent SentStore, logger *slog.Logger) *Service {
	return &Service{
		mail:    mail,
		baseURL: strings.TrimRight(baseURL, "/"),
		ledger:  ledger,
		sent:    sent,
		logger:  logger,
	}
}

// TrackingURL returns the pixel URL for a tracking token.
func (s *Service) TrackingURL(trackingID string) string {
	return s.baseURL + "/api/track/" + trackingID
}

// Send composes and dispatches one message. When tracking is requested
// the tracking row is created before the send, the beacon is appended
// to the body, and a plain text body is promoted to HTML so the beacon
// can render. The sent-mail record afterwards is best-effort: a
// persistence failure is logged and swallowed because the message has
// already left.
func (s *Service) Send(ctx context.Context, req Request, creds Credentials) (*Result, error) {
	finalBody := req.Body
	isHTML := req.IsHTML

	var trackingID string
	if req.IncludeTracking {
		te, err := s.ledger.Track(ctx, creds.UserID, req.To, req.Subject, req.Body)
		if err != nil {
			return nil, fmt.Errorf("enrolling message in tracking: %w", err)
		}
		trackingID = te.TrackingID
		finalBody, isHTML = injectBeacon(finalBody, isHTML, s.TrackingURL(trackingID))
	}

	messageID := newMessageID(s.mail.SMTPHost)
	raw := buildMessage(creds.Email, req.To, req.Subject, messageID, finalBody, isHTML)

	cfg := SMTPConfig{
		Host:     s.mail.SMTPHost,
		Port:     s.mail.SMTPPort,
		Username: creds.Email,
		Password: creds.Password,
		TLS:      s.mail.TLS,
	}
	if err := sendMessage(cfg, creds.Email, req.To, raw); err != nil {
		return nil, err
	}

	if _, err := s.sent.CreateSentEmail(ctx, model.SentEmail{
		RecipientEmail: req.To,
		Subject:        req.Subject,
		Body:           finalBody,
		MessageID:      messageID,
		TrackingID:     trackingID,
		UserID:         creds.UserID,
	}); err != nil {
		s.logger.Warn("saving sent email record", "to", req.To, "error", err)
	}

	return &Result{MessageID: messageID, TrackingID: trackingID}, nil
}

// injectBeacon appends the tracking pixel to an HTML body. A plain
// text body is first wrapped in a minimal HTML envelope and the
// message switches to HTML, a required side effect of tracking.
func injectBeacon(body string, isHTML bool, trackingURL string) (string, bool) {
	beacon := fmt.Sprintf(`<img src="%s" width="1" height="1">`, trackingURL)
	if isHTML {
		return body + beacon, true
	}
	return fmt.Sprintf("<html><body><p>%s</p>%s</body></html>", body, beacon), true
}

// buildMessage assembles the raw RFC 5322 message bytes.
func buildMessage(from, to, subject, messageID, body string, isHTML bool) []byte {
	contentType := "text/plain"
	if isHTML {
		contentType = "text/html"
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", sanitizeHeader(from)))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeHeader(to)))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeHeader(subject)))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	msg.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: %s; charset=utf-8\r\n", contentType))
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	return []byte(msg.String())
}

// newMessageID generates a provider-style message identifier.
func newMessageID(host string) string {
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), host)
}

// sanitizeHeader strips CR/LF so user input cannot inject headers.
func sanitizeHeader(value string) string {
	cleaned := strings.ReplaceAll(value, "\r", "")
	cleaned = strings.ReplaceAll(cleaned, "\n", "")
	return strings.TrimSpace(cleaned)
}
