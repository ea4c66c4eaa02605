// Package tracker implements the open-tracking ledger: issuing opaque
// tracking tokens, recording pixel fetches, and aggregating statistics.
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailtrace/internal/model"
	"github.com/nhle/mailtrace/internal/store"
)

// ErrUnknownTrackingID marks an open recorded against a token the
// ledger never issued. Callers treat it as a no-op, not a failure: the
// pixel is served either way.
var ErrUnknownTrackingID = errors.New("unknown tracking id")

// Store is the persistence surface the ledger needs.
type Store interface {
	CreateTrackedEmail(ctx context.Context, te model.TrackedEmail) (*model.TrackedEmail, error)
	GetTrackedEmailByTrackingID(ctx context.Context, trackingID string) (*model.TrackedEmail, error)
	TrackingIDExists(ctx context.Context, trackingID string) (bool, error)
	CreateOpen(ctx context.Context, trackedEmailID, sourceIP, userAgent string) (*model.EmailOpen, error)
	ResetOpens(ctx context.Context, trackedEmailID, userID string) (int64, error)
	Statistics(ctx context.Context, userID string) (model.Statistics, error)
	ListTrackedEmails(ctx context.Context, userID string) ([]model.TrackedEmailSummary, error)
}

// Ledger issues tracking tokens and owns the open records they collect.
type Ledger struct {
	store Store
}

// New creates a Ledger backed by the given store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// IssueTrackingID returns a fresh token that is not present in the
// ledger. Random collisions are effectively impossible at this token
// size; the existence check turns "effectively" into "actually".
func (l *Ledger) IssueTrackingID(ctx context.Context) (string, error) {
	for {
		id := NewTrackingID()
		exists, err := l.store.TrackingIDExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("issuing tracking id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
}

// Track enrolls an outgoing message: issues a tracking token and
// persists the TrackedEmail row it will correlate opens with.
func (l *Ledger) Track(ctx context.Context, userID, recipient, subject, content string) (*model.TrackedEmail, error) {
	trackingID, err := l.IssueTrackingID(ctx)
	if err != nil {
		return nil, err
	}

	te, err := l.store.CreateTrackedEmail(ctx, model.TrackedEmail{
		RecipientEmail: recipient,
		Subject:        subject,
		Content:        content,
		TrackingID:     trackingID,
		UserID:         userID,
	})
	if err != nil {
		return nil, fmt.Errorf("tracking email to %s: %w", recipient, err)
	}

	return te, nil
}

// RecordOpen inserts one open row for the tracked email behind
// trackingID. Every call inserts a new row; there is no deduplication.
// An unissued token returns ErrUnknownTrackingID.
func (l *Ledger) RecordOpen(ctx context.Context, trackingID, sourceIP, userAgent string) (string, error) {
	te, err := l.store.GetTrackedEmailByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownTrackingID
		}
		return "", fmt.Errorf("looking up tracking id: %w", err)
	}

	open, err := l.store.CreateOpen(ctx, te.ID, sourceIP, userAgent)
	if err != nil {
		return "", fmt.Errorf("recording open for %s: %w", trackingID, err)
	}

	return open.ID, nil
}

// ResetOpens soft-deletes the active opens of a tracked email owned by
// userID and returns how many rows were flipped. Ownership violations
// surface exactly like a missing email.
func (l *Ledger) ResetOpens(ctx context.Context, trackedEmailID, userID string) (int64, error) {
	return l.store.ResetOpens(ctx, trackedEmailID, userID)
}

// Statistics aggregates a user's tracking results over active opens.
func (l *Ledger) Statistics(ctx context.Context, userID string) (model.Statistics, error) {
	return l.store.Statistics(ctx, userID)
}

// ListTracked returns a user's tracked emails with open aggregates.
func (l *Ledger) ListTracked(ctx context.Context, userID string) ([]model.TrackedEmailSummary, error) {
	return l.store.ListTrackedEmails(ctx, userID)
}
