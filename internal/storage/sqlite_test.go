package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/leadvault/internal/config"
)

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	dbPath := filepath.Join(tmpDir, "leadvault.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var tableName string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='leads'").Scan(&tableName)
	if err != nil {
		t.Fatalf("leads table not found: %v", err)
	}
}

func TestInit_CreatesDirectories(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "nested", "path", ".leadvault")

	db, err := Init(baseDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(baseDir, "exports")); os.IsNotExist(err) {
		t.Errorf("exports directory not created under %s", baseDir)
	}
}

func TestUserVersion(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}
	db.Close()

	// Re-init is idempotent
	db, err = Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer db.Close()
	version, _ = GetUserVersion(db)
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after reopen = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestConfigurePool(t *testing.T) {
	db, err := Init(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	ConfigurePool(db, nil)
	ConfigurePool(db, &config.Config{DBMaxOpenConns: 3, DBMaxIdleConns: 1})
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
}

func TestSQLite_LoadsPartialRows(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	// Rows written by hand or by another tool may leave columns NULL.
	_, err = s.DB().Exec(`INSERT INTO leads (position, url, tags_json) VALUES (0, 'acme.com', 'Hot, B2B')`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO leads (position, name) VALUES (1, 'no link')`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO leads (position, id, url, stage, created_at) VALUES (2, 'x', 'https://x.io', 'lost', 7)`)
	require.NoError(t, err)

	raws, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 3)

	leads := normalized(t, raws)
	require.Len(t, leads, 2)

	assert.Equal(t, "https://acme.com", leads[0].URL)
	assert.Equal(t, "acme.com", leads[0].Name)
	assert.Equal(t, []string{"hot", "b2b"}, leads[0].Tags)
	assert.Equal(t, int64(42), leads[0].CreatedAt)

	assert.Equal(t, "x", leads[1].ID)
	assert.Equal(t, "prospect", string(leads[1].Stage))
	assert.Equal(t, int64(7), leads[1].CreatedAt)
}

func TestSQLite_SaveCancelled(t *testing.T) {
	s, err := OpenSQLite(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Save(ctx, sampleLeads()))
}

func TestSQLite_KeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()

	teamA, err := OpenSQLite(home, &config.Config{StorageKey: "teamA"})
	require.NoError(t, err)
	require.NoError(t, teamA.Save(ctx, sampleLeads()))
	require.NoError(t, teamA.Close())

	teamB, err := OpenSQLite(home, &config.Config{StorageKey: "teamB"})
	require.NoError(t, err)
	defer teamB.Close()

	raws, err := teamB.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, raws)

	// Saving under one key leaves the other untouched
	require.NoError(t, teamB.Save(ctx, sampleLeads()[1:]))
	require.NoError(t, teamB.Save(ctx, nil))

	teamA, err = OpenSQLite(home, &config.Config{StorageKey: "teamA"})
	require.NoError(t, err)
	defer teamA.Close()
	raws, err = teamA.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleLeads(), normalized(t, raws))
}

func TestInit_MigratesV1Rows(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()

	// Lay down a version 1 database by hand
	db, err := sql.Open("sqlite", filepath.Join(home, "leadvault.db"))
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE leads (
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
		INSERT INTO leads (position, id, name, url, stage, created_at) VALUES (0, 'old', 'Old Co', 'https://old.co', 'won', 9);
		PRAGMA user_version=1;`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := OpenSQLite(home, nil)
	require.NoError(t, err)
	defer s.Close()

	version, err := GetUserVersion(s.DB())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	raws, err := s.Load(ctx)
	require.NoError(t, err)
	leads := normalized(t, raws)
	require.Len(t, leads, 1)
	assert.Equal(t, "old", leads[0].ID)

	var key string
	require.NoError(t, s.DB().QueryRow(`SELECT storage_key FROM leads WHERE id = 'old'`).Scan(&key))
	assert.Equal(t, "myLeads", key)
}
