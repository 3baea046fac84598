package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/pkg/logger"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicatePending = errors.New("pending queue entry already exists")
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		raw_input TEXT NOT NULL,
		context_ids TEXT,
		identity_id INTEGER REFERENCES identities(id),
		name1 TEXT,
		name2 TEXT,
		genre TEXT,
		email TEXT,
		domain TEXT,
		is_personal INTEGER DEFAULT 0,
		confidence REAL DEFAULT 0,
		extraction_status TEXT NOT NULL DEFAULT 'unprocessed',
		name1_initial TEXT,
		name2_initial TEXT,
		role_label TEXT,
		reasoning TEXT,
		pipeline_version INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_status ON raw_records(extraction_status);
	CREATE INDEX IF NOT EXISTS idx_records_identity ON raw_records(identity_id);
	CREATE INDEX IF NOT EXISTS idx_records_domain ON raw_records(domain);
	CREATE INDEX IF NOT EXISTS idx_records_version ON raw_records(pipeline_version);

	CREATE TABLE IF NOT EXISTS identities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		primary_email TEXT,
		secondary_email TEXT,
		code TEXT,
		domain TEXT,
		secondary_domain TEXT,
		entity_ids TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_identities_email ON identities(primary_email);
	CREATE INDEX IF NOT EXISTS idx_identities_secondary ON identities(secondary_email);
	CREATE INDEX IF NOT EXISTS idx_identities_domain ON identities(domain);

	CREATE TABLE IF NOT EXISTS domain_patterns (
		domain TEXT PRIMARY KEY,
		convention TEXT NOT NULL,
		confidence REAL NOT NULL,
		sample_size INTEGER NOT NULL,
		is_shared INTEGER NOT NULL DEFAULT 0,
		company_name TEXT,
		entity_ids TEXT,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS queue_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue_type TEXT NOT NULL,
		source_ref INTEGER NOT NULL,
		target_ref INTEGER,
		proposed_data TEXT NOT NULL,
		current_data TEXT,
		confidence REAL NOT NULL,
		reasoning TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		reviewed_by TEXT,
		reviewed_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_queue_status ON queue_entries(status);
	CREATE INDEX IF NOT EXISTS idx_queue_type ON queue_entries(queue_type);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_pending_source
		ON queue_entries(queue_type, source_ref) WHERE status = 'pending';

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue_id INTEGER NOT NULL REFERENCES queue_entries(id),
		action TEXT NOT NULL,
		actor_id TEXT,
		timestamp INTEGER NOT NULL,
		modifications TEXT,
		apply_result TEXT,
		error_message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_queue ON audit_log(queue_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}
