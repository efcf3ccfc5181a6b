package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
)

// MaxImportBytes caps the size of an import file.
const MaxImportBytes = 10 << 20

// ImportMode controls what happens when an imported id already exists.
type ImportMode string

const (
	ImportModeSkip    ImportMode = "skip"    // default: keep the existing lead
	ImportModeReplace ImportMode = "replace" // overwrite the existing lead in place
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required; .jsonl, .json, .yaml or .yml
	Mode ImportMode // default: skip
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Replaced int           `json:"replaced"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes an entry that could not be imported.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// codeParseError marks a JSONL line that is not valid JSON. It counts as skipped.
const codeParseError = "PARSE_ERROR"

// entry is one decoded import item with its position in the file.
type entry struct {
	line int // 1-based line for JSONL, 0 otherwise
	raw  lead.Raw
}

// Import reads leads from a file and merges them into the collection.
// Every entry goes through the same normalization as persisted data, so
// legacy bare-link entries import too. New leads are inserted at the front in
// file order.
func (s *Store) Import(ctx context.Context, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeSkip
	}
	if input.Mode != ImportModeSkip && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: skip, replace")
	}
	if err := ValidatePath(input.Path, PathCheckRead, s.cfg, s.ExportsDir()); err != nil {
		return nil, err
	}
	format, _ := FormatForPath(input.Path)

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.LeadError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if info.Size() > MaxImportBytes {
		return nil, errors.NewFileTooLarge(MaxImportBytes, info.Size())
	}

	var (
		entries []entry
		out     = &ImportOutput{Errors: []ImportError{}}
	)
	switch format {
	case FormatJSONL:
		entries, out.Errors = parseJSONL(file)
		for _, e := range out.Errors {
			if e.Code == codeParseError {
				out.Skipped++
			}
		}
	case FormatJSON:
		entries, err = parseJSONArray(file)
	case FormatYAML:
		entries, err = parseYAML(file)
	}
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx, "import"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := s.defaults()
	seen := make(map[string]bool, len(entries))
	fresh := make([]lead.Lead, 0, len(entries))
	changed := false

	for i, e := range entries {
		l, ok := lead.Normalize(e.raw, defaults)
		if !ok {
			out.Skipped++
			out.Errors = append(out.Errors, ImportError{
				Line: e.line, Index: i, Code: "INVALID_RECORD",
				Message: "entry has no usable link",
			})
			continue
		}
		if seen[l.ID] {
			out.Skipped++
			out.Errors = append(out.Errors, ImportError{
				Line: e.line, Index: i, ID: l.ID, Code: "DUPLICATE_ID",
				Message: fmt.Sprintf("id %q appears more than once in the file", l.ID),
			})
			continue
		}
		seen[l.ID] = true

		if idx := s.indexLocked(l.ID); idx >= 0 {
			if input.Mode == ImportModeReplace {
				s.leads[idx] = l
				out.Replaced++
				changed = true
			} else {
				out.Skipped++
			}
			continue
		}
		fresh = append(fresh, l)
	}

	if len(fresh) > 0 {
		s.prependLocked(fresh...)
		out.Imported = len(fresh)
		changed = true
	}
	if changed {
		if err := s.persistLocked(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// parseJSONL reads a header line (optional) followed by one entry per line.
// Lines that are not JSON are reported and skipped.
func parseJSONL(r io.Reader) ([]entry, []ImportError) {
	var (
		entries    []entry
		parseErrs  = []ImportError{}
		lineNum    int
		entryIndex int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxImportBytes)
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			parseErrs = append(parseErrs, ImportError{
				Line: lineNum, Index: entryIndex, Code: codeParseError,
				Message: "invalid JSON",
			})
			entryIndex++
			continue
		}
		if isExportHeader(line) {
			continue
		}

		var raw lead.Raw
		_ = json.Unmarshal(line, &raw)
		entries = append(entries, entry{line: lineNum, raw: raw})
		entryIndex++
	}
	if err := scanner.Err(); err != nil {
		parseErrs = append(parseErrs, ImportError{
			Line: lineNum, Code: "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return entries, parseErrs
}

func isExportHeader(line []byte) bool {
	if line[0] != '{' {
		return false
	}
	var header ExportHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return false
	}
	return header.LeadvaultExport
}

// parseJSONArray reads a raw collection dump: one JSON array of entries.
func parseJSONArray(r io.Reader) ([]entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	var raws []lead.Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("file is not a JSON array: %v", err))
	}
	return toEntries(raws), nil
}

// parseYAML reads either an export document (a mapping with a "leads" list)
// or a bare list. Items are bridged through JSON so they decode exactly like
// persisted entries.
func parseYAML(r io.Reader) ([]entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid YAML: %v", err))
	}

	var items []any
	switch v := doc.(type) {
	case nil:
	case []any:
		items = v
	case map[string]any:
		list, ok := v["leads"].([]any)
		if !ok && v["leads"] != nil {
			return nil, errors.NewInvalidRequest("yaml \"leads\" must be a list")
		}
		items = list
	default:
		return nil, errors.NewInvalidRequest("yaml document must be a list or contain a \"leads\" list")
	}

	raws := make([]lead.Raw, len(items))
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			raws[i] = lead.Raw{Kind: lead.RawInvalid}
			continue
		}
		_ = json.Unmarshal(data, &raws[i])
	}
	return toEntries(raws), nil
}

func toEntries(raws []lead.Raw) []entry {
	entries := make([]entry, len(raws))
	for i, r := range raws {
		entries[i] = entry{raw: r}
	}
	return entries
}
