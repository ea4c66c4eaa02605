package model

import "time"

// User is the single authenticated identity of the tool. The record is
// created on the first successful credential verification; the secret is
// replaced on every later verification and the row is never hard-deleted.
type User struct {
	ID          string    `db:"id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	// Secret is the opaque app password. It is never parsed, only
	// forwarded to the IMAP and SMTP capabilities.
	Secret    string    `db:"secret"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TrackedEmail is an outgoing message enrolled in open tracking.
// Immutable after creation except through its owned opens.
type TrackedEmail struct {
	ID             string    `db:"id"`
	RecipientEmail string    `db:"recipient_email"`
	Subject        string    `db:"subject"`
	Content        string    `db:"content"`
	TrackingID     string    `db:"tracking_id"`
	UserID         string    `db:"user_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// EmailOpen records a single pixel fetch for a tracked email. Every
// fetch inserts a new row; there is no deduplication. IsDeleted is a
// soft-delete flag set only by the owner's reset action.
type EmailOpen struct {
	ID             string     `db:"id"`
	TrackedEmailID string     `db:"tracked_email_id"`
	OpenedAt       time.Time  `db:"opened_at"`
	SourceIP       string     `db:"source_ip"`
	UserAgent      string     `db:"user_agent"`
	IsDeleted      bool       `db:"is_deleted"`
	DeletedAt      *time.Time `db:"deleted_at"`
}

// SentEmail is the record of a successfully dispatched message.
// Persisting it is best-effort: a failed insert never fails the send.
type SentEmail struct {
	ID             string    `db:"id"`
	RecipientEmail string    `db:"recipient_email"`
	Subject        string    `db:"subject"`
	Body           string    `db:"body"`
	MessageID      string    `db:"message_id"`
	TrackingID     string    `db:"tracking_id"`
	UserID         string    `db:"user_id"`
	SentAt         time.Time `db:"sent_at"`
}

// TrackedEmailSummary is a TrackedEmail joined with its active open
// aggregates for the dashboard listing.
type TrackedEmailSummary struct {
	TrackedEmail
	OpenCount     int
	FirstOpenedAt *time.Time
	LastOpenedAt  *time.Time
}

// Statistics aggregates open tracking over one user's tracked emails.
type Statistics struct {
	TotalEmails int    `json:"totalEmails"`
	TotalOpens  int    `json:"totalOpens"`
	UniqueOpens int    `json:"uniqueOpens"`
	OpenRate    string `json:"openRate"`
}
