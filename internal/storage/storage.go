// Package storage persists the lead collection through interchangeable backends.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/leadvault/internal/config"
	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
)

// Backend loads and saves the whole collection.
// Load returns entries in stored order without normalizing them.
// Save replaces the stored collection atomically.
type Backend interface {
	Load(ctx context.Context) ([]lead.Raw, error)
	Save(ctx context.Context, leads []lead.Lead) error
	Close() error
	Name() string
}

// Open creates the base directory layout under home and opens the backend
// selected by cfg.Backend.
func Open(cfg *config.Config, home string) (Backend, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := EnsureDirs(home); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case "", config.BackendSQLite:
		return OpenSQLite(home, cfg)
	case config.BackendBadger:
		return OpenBadger(home, cfg.StorageKey)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown backend %q (want sqlite or badger)", cfg.Backend))
	}
}

// EnsureDirs creates home and home/exports with restricted permissions.
func EnsureDirs(home string) error {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(home, 0700); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(home, 0700)

	exportsDir := filepath.Join(home, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)
	return nil
}

// DataPath returns the file or directory a backend keeps its data in.
// The watcher observes this path.
func DataPath(cfg *config.Config, home string) string {
	if cfg != nil && cfg.Backend == config.BackendBadger {
		return filepath.Join(home, badgerDir)
	}
	return filepath.Join(home, sqliteFile)
}
