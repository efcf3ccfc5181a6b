package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/leadvault/internal/config"
	"github.com/hpungsan/leadvault/internal/lead"
	_ "modernc.org/sqlite"
)

const sqliteFile = "leadvault.db"

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// SQLite stores one row per lead, ordered by position within its storage
// key. Collections under different keys share the file but never mix.
// Columns are nullable so rows written by older or foreign tools still
// load and go through normalization.
type SQLite struct {
	db  *sql.DB
	key string
}

// OpenSQLite opens (and migrates) the database at home/leadvault.db and
// scopes reads and writes to cfg.StorageKey.
func OpenSQLite(home string, cfg *config.Config) (*SQLite, error) {
	db, err := Init(home)
	if err != nil {
		return nil, err
	}
	ConfigurePool(db, cfg)

	key := config.DefaultConfig().StorageKey
	if cfg != nil && cfg.StorageKey != "" {
		key = cfg.StorageKey
	}
	return &SQLite{db: db, key: key}, nil
}

// Init initializes the SQLite database at baseDir/leadvault.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.leadvault.
func Init(baseDir string) (*sql.DB, error) {
	if err := EnsureDirs(baseDir); err != nil {
		return nil, err
	}

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, sqliteFile)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS leads (
		  position    INTEGER PRIMARY KEY,
		  id          TEXT,
		  name        TEXT,
		  url         TEXT,
		  stage       TEXT,
		  tags_json   TEXT,
		  note        TEXT,
		  starred     INTEGER NOT NULL DEFAULT 0,
		  created_at  INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_leads_id ON leads(id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
		version = 1
	}

	// Migration 1 -> 2: namespace rows by storage key. Existing rows belong
	// to the default key.
	if version < 2 {
		if err := migrateStorageKey(db); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
	}

	return nil
}

func migrateStorageKey(db *sql.DB) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmts := []string{
		`CREATE TABLE leads_v2 (
		  storage_key TEXT NOT NULL DEFAULT '` + config.DefaultConfig().StorageKey + `',
		  position    INTEGER NOT NULL,
		  id          TEXT,
		  name        TEXT,
		  url         TEXT,
		  stage       TEXT,
		  tags_json   TEXT,
		  note        TEXT,
		  starred     INTEGER NOT NULL DEFAULT 0,
		  created_at  INTEGER,
		  PRIMARY KEY (storage_key, position)
		)`,
		`INSERT INTO leads_v2 (position, id, name, url, stage, tags_json, note, starred, created_at)
		 SELECT position, id, name, url, stage, tags_json, note, starred, created_at FROM leads`,
		`DROP TABLE leads`,
		`ALTER TABLE leads_v2 RENAME TO leads`,
		`CREATE INDEX IF NOT EXISTS idx_leads_key_id ON leads(storage_key, id)`,
		`PRAGMA user_version=2`,
	}
	for _, stmt := range stmts {
		if _, err = tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// Name implements Backend.
func (s *SQLite) Name() string { return config.BackendSQLite }

// DB exposes the underlying handle for tests and maintenance commands.
func (s *SQLite) DB() *sql.DB { return s.db }

// Close implements Backend.
func (s *SQLite) Close() error { return s.db.Close() }

// Load implements Backend.
func (s *SQLite) Load(ctx context.Context) ([]lead.Raw, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, stage, tags_json, note, starred, created_at
		FROM leads WHERE storage_key = ? ORDER BY position ASC`, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var raws []lead.Raw
	for rows.Next() {
		var (
			id, name, link, stage, tagsJSON, note sql.NullString
			starred                               int64
			createdAt                             sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &link, &stage, &tagsJSON, &note, &starred, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		raws = append(raws, lead.Raw{
			Kind: lead.RawRecord,
			Record: lead.Record{
				ID:        nullString(id),
				Name:      nullString(name),
				URL:       nullString(link),
				Stage:     nullString(stage),
				Tags:      decodeTags(tagsJSON),
				Note:      nullString(note),
				Starred:   starred != 0,
				CreatedAt: createdAt.Int64,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return raws, nil
}

// Save implements Backend. The rows under the store's key are rewritten in
// one transaction.
func (s *SQLite) Save(ctx context.Context, leads []lead.Lead) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM leads WHERE storage_key = ?`, s.key); err != nil {
		return fmt.Errorf("failed to clear leads: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leads (storage_key, position, id, name, url, stage, tags_json, note, starred, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, l := range leads {
		tags := l.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, mErr := json.Marshal(tags)
		if mErr != nil {
			return fmt.Errorf("failed to marshal tags: %w", mErr)
		}
		starred := 0
		if l.Starred {
			starred = 1
		}
		if _, err = stmt.ExecContext(ctx, s.key, i, l.ID, l.Name, l.URL, string(l.Stage), string(tagsJSON), l.Note, starred, l.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert lead %s: %w", l.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// decodeTags accepts a JSON array or, for hand-edited rows, a comma string.
func decodeTags(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(ns.String), &tags); err == nil {
		return tags
	}
	return lead.ParseTags(ns.String)
}
