package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailtrace/internal/model"
)

// CreateSentEmail records a dispatched message. Callers treat failures
// here as non-fatal: the message has already left, so the record is
// best-effort.
func (s *SQLiteStore) CreateSentEmail(ctx context.Context, se model.SentEmail) (*model.SentEmail, error) {
	if se.ID == "" {
		se.ID = uuid.New().String()
	}
	if se.SentAt.IsZero() {
		se.SentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sent_emails (
			id, recipient_email, subject, body, message_id, tracking_id, user_id, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		se.ID, se.RecipientEmail, se.Subject, se.Body,
		se.MessageID, se.TrackingID, se.UserID, se.SentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating sent email: %w", err)
	}

	return &se, nil
}

// ListSentEmails returns a user's sent mail records, newest first.
func (s *SQLiteStore) ListSentEmails(ctx context.Context, userID string) ([]model.SentEmail, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM sent_emails WHERE user_id = ? ORDER BY sent_at DESC", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sent emails: %w", err)
	}
	defer rows.Close()

	var sent []model.SentEmail
	for rows.Next() {
		var se model.SentEmail
		err := rows.Scan(
			&se.ID, &se.RecipientEmail, &se.Subject, &se.Body,
			&se.MessageID, &se.TrackingID, &se.UserID, &se.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning sent email row: %w", err)
		}
		sent = append(sent, se)
	}

	return sent, rows.Err()
}
