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

// UpsertUser records a successfully verified identity. A new row is
// created on first verification; on later verifications the secret is
// replaced and updated_at advanced. Callers must only invoke this after
// the credentials have been verified against the mail provider.
func (s *SQLiteStore) UpsertUser(ctx context.Context, email, displayName, secret string) (*model.User, error) {
	now := time.Now().UTC()

	existing, err := s.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE users SET secret = ?, display_name = ?, updated_at = ?
			WHERE id = ?`,
			secret, displayName, now, existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating user %s: %w", email, err)
		}
		existing.Secret = secret
		existing.DisplayName = displayName
		existing.UpdatedAt = now
		return existing, nil
	}

	user := &model.User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
		Secret:      secret,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, user.Secret,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", email, err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by their mail address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM users WHERE email = ?", email)
	return scanUser(row)
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM users WHERE id = ?", id)
	return scanUser(row)
}

// scanUser scans a user row from a sqlx.Row.
func scanUser(row *sqlx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.Secret,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user row: %w", err)
	}
	return &user, nil
}
