package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go sqlite driver, no cgo
)

type SQLiteStorage struct {
	DB *sql.DB
}

// NewSQLiteStorage opens or creates the database file and runs migrations.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return &SQLiteStorage{DB: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS match_records (
			id TEXT PRIMARY KEY,
			player1_id TEXT NOT NULL,
			player2_id TEXT NOT NULL,
			player1_name TEXT NOT NULL,
			player2_name TEXT NOT NULL,
			player1_colour TEXT NOT NULL,
			player2_colour TEXT NOT NULL,
			final_grid TEXT NOT NULL,
			result TEXT NOT NULL,
			winner_id TEXT,
			forfeit INTEGER NOT NULL DEFAULT 0,
			forfeiter_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_match_records_player1 ON match_records(player1_id);
		CREATE INDEX IF NOT EXISTS idx_match_records_player2 ON match_records(player2_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}

func (that *SQLiteStorage) Close() error {
	if err := that.DB.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite database: %w", err)
	}

	return nil
}
