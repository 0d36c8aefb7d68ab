// Package store persists user profiles, exam submissions, chat memory,
// and the LLM call log in a local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection and provides the repositories.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at dsn, applies recommended
// pragmas and creates the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// applyPragmas configures SQLite for single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		uid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		target_score REAL,
		voice_gender TEXT NOT NULL DEFAULT 'male',
		is_onboarded INTEGER NOT NULL DEFAULT 0,
		assessment_done INTEGER NOT NULL DEFAULT 0,
		diagnostic_score REAL,
		avg_score REAL,
		submission_count INTEGER NOT NULL DEFAULT 0,
		weaknesses_json TEXT NOT NULL DEFAULT '[]',
		strengths_json TEXT NOT NULL DEFAULT '[]',
		clean_streak_json TEXT NOT NULL DEFAULT '{}',
		lesson_progress_json TEXT NOT NULL DEFAULT '{}',
		traits_json TEXT NOT NULL DEFAULT '[]',
		level TEXT NOT NULL DEFAULT 'Tân Binh',
		xp INTEGER NOT NULL DEFAULT 0,
		streak INTEGER NOT NULL DEFAULT 1,
		progress INTEGER NOT NULL DEFAULT 5,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		uid TEXT NOT NULL REFERENCES users(uid),
		exam_id INTEGER NOT NULL,
		student_answer TEXT NOT NULL,
		cheating INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		grade_json TEXT,
		created_at INTEGER NOT NULL,
		graded_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_uid ON submissions(uid, exam_id);

	CREATE TABLE IF NOT EXISTS chat_memory (
		uid TEXT PRIMARY KEY REFERENCES users(uid),
		messages_json TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS llm_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		success INTEGER NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_llm_calls_created ON llm_calls(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. VANMASTER_DB environment variable
// 2. $XDG_DATA_HOME/vanmaster/vanmaster.db
// 3. ~/.local/share/vanmaster/vanmaster.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("VANMASTER_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "vanmaster", "vanmaster.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
