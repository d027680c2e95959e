package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// buildsSchema and queueSchema are applied by CreateTables. The teacher
// resolves a schema from an external .sql file via ExecSchema; this repo's
// pack copy carries no such file, so the DDL is embedded directly, in the
// same "CREATE TABLE IF NOT EXISTS" style.
const buildsSchema = `
CREATE TABLE IF NOT EXISTS builds (
	id TEXT PRIMARY KEY,
	lyrics_text TEXT NOT NULL,
	style TEXT,
	audio_path TEXT,
	midi_path TEXT,
	storyboard_json TEXT,
	diagnostics_json TEXT,
	error_message TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	completed_at TIMESTAMP
);`

const queueSchema = `
CREATE TABLE IF NOT EXISTS build_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued',
	priority INTEGER NOT NULL DEFAULT 0,
	current_step TEXT,
	error_message TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	queued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	started_at TIMESTAMP,
	completed_at TIMESTAMP
);`

// InitDB initializes the database connection and creates tables if needed.
func InitDB(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	log.Printf("Database initialized at %s", dbPath)
	return CreateTables()
}

// CreateTables applies the builds/build_queue schema.
func CreateTables() error {
	if _, err := DB.Exec(buildsSchema); err != nil {
		return fmt.Errorf("failed to create builds table: %w", err)
	}
	if _, err := DB.Exec(queueSchema); err != nil {
		return fmt.Errorf("failed to create build_queue table: %w", err)
	}
	log.Println("Database schema applied successfully")
	return nil
}

// Close closes the database connection.
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// ExecSchema executes an external SQL schema file, kept for deployments
// that prefer to manage DDL outside the binary.
func ExecSchema(schemaPath string) error {
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := DB.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	log.Println("Database schema applied successfully")
	return nil
}
