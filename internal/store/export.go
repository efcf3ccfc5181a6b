package store

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
)

// SchemaVersion is written into every export header.
const SchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string // optional, default: <home>/exports/leads-<timestamp>.jsonl
	Filter string // optional stage filter, default all
	Search string // optional search term
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export.
type ExportHeader struct {
	LeadvaultExport bool   `json:"_leadvault_export"`
	SchemaVersion   string `json:"schema_version"`
	ExportedAt      int64  `json:"exported_at"`
}

// yamlExport is the document written for .yaml/.yml exports.
type yamlExport struct {
	LeadvaultExport bool        `yaml:"leadvault_export"`
	SchemaVersion   string      `yaml:"schema_version"`
	ExportedAt      int64       `yaml:"exported_at"`
	Leads           []lead.Lead `yaml:"leads"`
}

// Export writes the (optionally filtered) collection to a JSONL or YAML file.
// The file is written to a temp name and renamed into place.
func (s *Store) Export(ctx context.Context, input ExportInput) (*ExportOutput, error) {
	view, err := s.View(ViewInput{Filter: input.Filter, Search: input.Search})
	if err != nil {
		return nil, err
	}

	now := s.now()
	exportedAt := now.Unix()

	exportPath := input.Path
	if exportPath == "" {
		exportPath = filepath.Join(s.ExportsDir(), fmt.Sprintf("leads-%s.jsonl", now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(exportPath, PathCheckWrite, s.cfg, s.ExportsDir()); err != nil {
		return nil, err
	}
	format, _ := FormatForPath(exportPath)

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	switch format {
	case FormatYAML:
		err = writeYAML(w, view.Leads, exportedAt)
	default:
		err = writeJSONL(ctx, w, view.Leads, exportedAt)
	}
	if err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      len(view.Leads),
		ExportedAt: exportedAt,
	}, nil
}

func writeJSONL(ctx context.Context, w *bufio.Writer, leads []lead.Lead, exportedAt int64) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	header := ExportHeader{LeadvaultExport: true, SchemaVersion: SchemaVersion, ExportedAt: exportedAt}
	if err := enc.Encode(header); err != nil {
		return errors.NewInternal(err)
	}
	for _, l := range leads {
		if ctx.Err() != nil {
			return errors.NewCancelled("export")
		}
		if err := enc.Encode(l); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

func writeYAML(w *bufio.Writer, leads []lead.Lead, exportedAt int64) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := yamlExport{
		LeadvaultExport: true,
		SchemaVersion:   SchemaVersion,
		ExportedAt:      exportedAt,
		Leads:           leads,
	}
	if err := enc.Encode(doc); err != nil {
		return errors.NewInternal(err)
	}
	if err := enc.Close(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
