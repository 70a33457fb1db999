package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Users table
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		structure TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'utilisateur',
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_structure ON users(structure);

	-- Sessions
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL,
		last_activity_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ip_address TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);

	-- Password reset tokens
	CREATE TABLE IF NOT EXISTS password_reset_tokens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		code_hash TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		used_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_reset_tokens_email ON password_reset_tokens(email);

	-- Visitor register
	CREATE TABLE IF NOT EXISTS visitors (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		image_path TEXT NOT NULL,
		phone_number TEXT NOT NULL,
		place_of_birth TEXT NOT NULL DEFAULT '',
		motif TEXT NOT NULL,
		date TEXT NOT NULL,
		arrival_time TEXT NOT NULL,
		exit_time TEXT,
		observation TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_visitors_user_id ON visitors(user_id);
	CREATE INDEX IF NOT EXISTS idx_visitors_date ON visitors(date);

	-- Documents
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		file_name TEXT NOT NULL,
		document_type TEXT NOT NULL DEFAULT '',
		stored_path TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		uploaded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);

	-- Share records (visitor and document shares; rows are never deleted)
	CREATE TABLE IF NOT EXISTS shares (
		id TEXT PRIMARY KEY,
		subject_kind TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		owner_user_id TEXT NOT NULL REFERENCES users(id),
		recipient_user_id TEXT NOT NULL REFERENCES users(id),
		snapshot TEXT NOT NULL,
		snapshot_blob BLOB,
		created_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		CHECK (owner_user_id <> recipient_user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_shares_recipient ON shares(recipient_user_id, status);
	CREATE INDEX IF NOT EXISTS idx_shares_subject ON shares(subject_kind, subject_id);
	-- At most one undelivered share per (subject, recipient) pair
	CREATE UNIQUE INDEX IF NOT EXISTS idx_shares_pending_pair
		ON shares(subject_kind, subject_id, recipient_user_id)
		WHERE status IN ('active', 'notified');
	`

	_, err := db.Exec(schema)
	return err
}
