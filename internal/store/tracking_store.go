package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/mailtrace/internal/model"
)

// CreateTrackedEmail inserts a tracked email row. The row is immutable
// after creation; only its opens change.
func (s *SQLiteStore) CreateTrackedEmail(ctx context.Context, te model.TrackedEmail) (*model.TrackedEmail, error) {
	if te.ID == "" {
		te.ID = uuid.New().String()
	}
	if te.CreatedAt.IsZero() {
		te.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_emails (
			id, recipient_email, subject, content, tracking_id, user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		te.ID, te.RecipientEmail, te.Subject, te.Content,
		te.TrackingID, te.UserID, te.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating tracked email: %w", err)
	}

	return &te, nil
}

// GetTrackedEmailByTrackingID looks up a tracked email by its opaque
// tracking token. Returns ErrNotFound for unknown tokens.
func (s *SQLiteStore) GetTrackedEmailByTrackingID(ctx context.Context, trackingID string) (*model.TrackedEmail, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM tracked_emails WHERE tracking_id = ?", trackingID,
	)
	return scanTrackedEmail(row)
}

// GetTrackedEmail retrieves a tracked email by ID scoped to its owner.
// A missing row and a row owned by someone else both return ErrNotFound.
func (s *SQLiteStore) GetTrackedEmail(ctx context.Context, id, userID string) (*model.TrackedEmail, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM tracked_emails WHERE id = ? AND user_id = ?", id, userID,
	)
	return scanTrackedEmail(row)
}

// TrackingIDExists reports whether a tracking token is already issued.
func (s *SQLiteStore) TrackingIDExists(ctx context.Context, trackingID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM tracked_emails WHERE tracking_id = ?", trackingID,
	)
	if err != nil {
		return false, fmt.Errorf("checking tracking id: %w", err)
	}
	return count > 0, nil
}

// CreateOpen inserts one open row. Every pixel fetch inserts
// unconditionally; near-simultaneous opens are independent rows.
func (s *SQLiteStore) CreateOpen(ctx context.Context, trackedEmailID, sourceIP, userAgent string) (*model.EmailOpen, error) {
	open := model.EmailOpen{
		ID:             uuid.New().String(),
		TrackedEmailID: trackedEmailID,
		OpenedAt:       time.Now().UTC(),
		SourceIP:       sourceIP,
		UserAgent:      userAgent,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_opens (
			id, tracked_email_id, opened_at, source_ip, user_agent, is_deleted, deleted_at
		) VALUES (?, ?, ?, ?, ?, 0, NULL)`,
		open.ID, open.TrackedEmailID, open.OpenedAt, open.SourceIP, open.UserAgent,
	)
	if err != nil {
		return nil, fmt.Errorf("creating email open: %w", err)
	}

	return &open, nil
}

// ResetOpens soft-deletes all currently-active opens of a tracked email,
// but only when userID owns it. Returns the number of rows flipped.
// Ownership failure and a missing email are indistinguishable.
func (s *SQLiteStore) ResetOpens(ctx context.Context, trackedEmailID, userID string) (int64, error) {
	if _, err := s.GetTrackedEmail(ctx, trackedEmailID, userID); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE email_opens SET is_deleted = 1, deleted_at = ?
		WHERE tracked_email_id = ? AND is_deleted = 0`,
		time.Now().UTC(), trackedEmailID,
	)
	if err != nil {
		return 0, fmt.Errorf("resetting opens for %s: %w", trackedEmailID, err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting reset opens: %w", err)
	}
	return count, nil
}

// ListOpens returns the opens of a tracked email, active rows only
// unless includeDeleted is set, oldest first.
func (s *SQLiteStore) ListOpens(ctx context.Context, trackedEmailID string, includeDeleted bool) ([]model.EmailOpen, error) {
	query := "SELECT * FROM email_opens WHERE tracked_email_id = ?"
	if !includeDeleted {
		query += " AND is_deleted = 0"
	}
	query += " ORDER BY opened_at ASC"

	rows, err := s.db.QueryxContext(ctx, query, trackedEmailID)
	if err != nil {
		return nil, fmt.Errorf("querying opens: %w", err)
	}
	defer rows.Close()

	var opens []model.EmailOpen
	for rows.Next() {
		open, err := scanOpen(rows)
		if err != nil {
			return nil, err
		}
		opens = append(opens, open)
	}

	return opens, rows.Err()
}

// ListTrackedEmails returns a user's tracked emails with their active
// open aggregates, newest first.
func (s *SQLiteStore) ListTrackedEmails(ctx context.Context, userID string) ([]model.TrackedEmailSummary, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT
			t.id, t.recipient_email, t.subject, t.content,
			t.tracking_id, t.user_id, t.created_at,
			COUNT(o.id) AS open_count,
			MIN(o.opened_at) AS first_opened_at,
			MAX(o.opened_at) AS last_opened_at
		FROM tracked_emails t
		LEFT JOIN email_opens o
			ON o.tracked_email_id = t.id AND o.is_deleted = 0
		WHERE t.user_id = ?
		GROUP BY t.id
		ORDER BY t.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tracked emails: %w", err)
	}
	defer rows.Close()

	var summaries []model.TrackedEmailSummary
	for rows.Next() {
		var (
			sum   model.TrackedEmailSummary
			first sql.NullTime
			last  sql.NullTime
		)
		err := rows.Scan(
			&sum.ID, &sum.RecipientEmail, &sum.Subject, &sum.Content,
			&sum.TrackingID, &sum.UserID, &sum.CreatedAt,
			&sum.OpenCount, &first, &last,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning tracked email row: %w", err)
		}
		if first.Valid {
			t := first.Time
			sum.FirstOpenedAt = &t
		}
		if last.Valid {
			t := last.Time
			sum.LastOpenedAt = &t
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// Statistics aggregates a user's tracking results, counting only
// active (not soft-deleted) opens. OpenRate is rendered with two
// decimal places and is "0.00" when the user has no tracked emails.
func (s *SQLiteStore) Statistics(ctx context.Context, userID string) (model.Statistics, error) {
	var stats model.Statistics

	err := s.db.GetContext(ctx, &stats.TotalEmails,
		"SELECT COUNT(*) FROM tracked_emails WHERE user_id = ?", userID,
	)
	if err != nil {
		return stats, fmt.Errorf("counting tracked emails: %w", err)
	}

	err = s.db.GetContext(ctx, &stats.TotalOpens, `
		SELECT COUNT(*) FROM email_opens o
		JOIN tracked_emails t ON t.id = o.tracked_email_id
		WHERE o.is_deleted = 0 AND t.user_id = ?`,
		userID,
	)
	if err != nil {
		return stats, fmt.Errorf("counting opens: %w", err)
	}

	err = s.db.GetContext(ctx, &stats.UniqueOpens, `
		SELECT COUNT(DISTINCT o.tracked_email_id) FROM email_opens o
		JOIN tracked_emails t ON t.id = o.tracked_email_id
		WHERE o.is_deleted = 0 AND t.user_id = ?`,
		userID,
	)
	if err != nil {
		return stats, fmt.Errorf("counting opened emails: %w", err)
	}

	stats.OpenRate = "0.00"
	if stats.TotalEmails > 0 {
		stats.OpenRate = fmt.Sprintf("%.2f",
			float64(stats.UniqueOpens)/float64(stats.TotalEmails)*100,
		)
	}

	return stats, nil
}

// scanTrackedEmail scans a tracked email row from a sqlx.Row.
func scanTrackedEmail(row *sqlx.Row) (*model.TrackedEmail, error) {
	var te model.TrackedEmail
	err := row.Scan(
		&te.ID, &te.RecipientEmail, &te.Subject, &te.Content,
		&te.TrackingID, &te.UserID, &te.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tracked email row: %w", err)
	}
	return &te, nil
}

// scanOpen scans an open row from a sqlx.Rows result set.
func scanOpen(rows *sqlx.Rows) (model.EmailOpen, error) {
	var (
		open      model.EmailOpen
		isDeleted int
		deletedAt sql.NullTime
	)
	err := rows.Scan(
		&open.ID, &open.TrackedEmailID, &open.OpenedAt,
		&open.SourceIP, &open.UserAgent, &isDeleted, &deletedAt,
	)
	if err != nil {
		return model.EmailOpen{}, fmt.Errorf("scanning open row: %w", err)
	}
	open.IsDeleted = isDeleted != 0
	if deletedAt.Valid {
		t := deletedAt.Time
		open.DeletedAt = &t
	}
	return open, nil
}
