package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	secret       TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tracked_emails (
	id              TEXT PRIMARY KEY,
	recipient_email TEXT NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL DEFAULT '',
	tracking_id     TEXT NOT NULL UNIQUE,
	user_id         TEXT NOT NULL REFERENCES users(id),
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS email_opens (
	id               TEXT PRIMARY KEY,
	tracked_email_id TEXT NOT NULL REFERENCES tracked_emails(id) ON DELETE CASCADE,
	opened_at        DATETIME NOT NULL,
	source_ip        TEXT NOT NULL DEFAULT 'unknown',
	user_agent       TEXT NOT NULL DEFAULT 'unknown',
	is_deleted       INTEGER NOT NULL DEFAULT 0 CHECK(is_deleted IN (0, 1)),
	deleted_at       DATETIME
);

CREATE TABLE IF NOT EXISTS sent_emails (
	id              TEXT PRIMARY KEY,
	recipient_email TEXT NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	message_id      TEXT NOT NULL DEFAULT '',
	tracking_id     TEXT NOT NULL DEFAULT '',
	user_id         TEXT NOT NULL REFERENCES users(id),
	sent_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracked_emails_user_id ON tracked_emails(user_id);
CREATE INDEX IF NOT EXISTS idx_tracked_emails_tracking_id ON tracked_emails(tracking_id);
CREATE INDEX IF NOT EXISTS idx_email_opens_tracked ON email_opens(tracked_email_id);
CREATE INDEX IF NOT EXISTS idx_email_opens_active ON email_opens(tracked_email_id, is_deleted);
CREATE INDEX IF NOT EXISTS idx_sent_emails_user_id ON sent_emails(user_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_tracked_emails_created
	ON tracked_emails(user_id, created_at);

CREATE INDEX IF NOT EXISTS idx_email_opens_opened_at
	ON email_opens(opened_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
