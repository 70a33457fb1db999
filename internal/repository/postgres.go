package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		structure TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'utilisateur',
		password_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_users_structure ON users(structure);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMP NOT NULL,
		last_activity_at TIMESTAMP NOT NULL DEFAULT NOW(),
		ip_address TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);

	CREATE TABLE IF NOT EXISTS password_reset_tokens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		code_hash TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMP NOT NULL,
		used BOOLEAN NOT NULL DEFAULT FALSE,
		used_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reset_tokens_email ON password_reset_tokens(email);

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
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_visitors_user_id ON visitors(user_id);
	CREATE INDEX IF NOT EXISTS idx_visitors_date ON visitors(date);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		file_name TEXT NOT NULL,
		document_type TEXT NOT NULL DEFAULT '',
		stored_path TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);

	CREATE TABLE IF NOT EXISTS shares (
		id TEXT PRIMARY KEY,
		subject_kind TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		owner_user_id TEXT NOT NULL REFERENCES users(id),
		recipient_user_id TEXT NOT NULL REFERENCES users(id),
		snapshot TEXT NOT NULL,
		snapshot_blob BYTEA,
		created_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		CHECK (owner_user_id <> recipient_user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_shares_recipient ON shares(recipient_user_id, status);
	CREATE INDEX IF NOT EXISTS idx_shares_subject ON shares(subject_kind, subject_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_shares_pending_pair
		ON shares(subject_kind, subject_id, recipient_user_id)
		WHERE status IN ('active', 'notified');
	`

	_, err := db.Exec(schema)
	return err
}
