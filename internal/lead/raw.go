package lead

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// RawKind identifies which persisted shape a Raw entry was decoded from.
type RawKind int

const (
	// RawInvalid is anything that cannot become a lead (null, numbers, arrays, empty strings).
	RawInvalid RawKind = iota
	// RawLegacyURL is a bare string holding only a link, as saved by older versions.
	RawLegacyURL
	// RawRecord is an object with any subset of the Lead fields.
	RawRecord
)

// String returns the kind name.
func (k RawKind) String() string {
	switch k {
	case RawLegacyURL:
		return "legacy-url"
	case RawRecord:
		return "record"
	default:
		return "invalid"
	}
}

// Record holds the fields of a structured entry. Absent fields are nil/zero.
type Record struct {
	ID        *string
	Name      *string
	URL       *string
	Stage     *string
	Tags      []string
	Note      *string
	Starred   bool
	CreatedAt int64
}

// Raw is a persisted entry whose shape is resolved once at decode time.
type Raw struct {
	Kind   RawKind
	URL    string // set for RawLegacyURL
	Record Record // set for RawRecord
}

// LegacyURL returns a Raw for a bare link string.
func LegacyURL(link string) Raw {
	if strings.TrimSpace(link) == "" {
		return Raw{Kind: RawInvalid}
	}
	return Raw{Kind: RawLegacyURL, URL: link}
}

// FromLead returns the structured Raw form of l.
func FromLead(l Lead) Raw {
	id, name, link, stage, note := l.ID, l.Name, l.URL, string(l.Stage), l.Note
	return Raw{
		Kind: RawRecord,
		Record: Record{
			ID:        &id,
			Name:      &name,
			URL:       &link,
			Stage:     &stage,
			Tags:      append([]string(nil), l.Tags...),
			Note:      &note,
			Starred:   l.Starred,
			CreatedAt: l.CreatedAt,
		},
	}
}

// UnmarshalJSON decodes any JSON value into a Raw. It never fails on shape:
// values that cannot be coerced decode as RawInvalid.
func (r *Raw) UnmarshalJSON(data []byte) error {
	*r = Raw{Kind: RawInvalid}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*r = LegacyURL(s)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil
		}
		*r = Raw{Kind: RawRecord, Record: decodeRecord(fields)}
	}
	return nil
}

// MarshalJSON encodes a Raw back into its persisted shape.
func (r Raw) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RawLegacyURL:
		return json.Marshal(r.URL)
	case RawRecord:
		out := map[string]any{"starred": r.Record.Starred}
		if r.Record.ID != nil {
			out["id"] = *r.Record.ID
		}
		if r.Record.Name != nil {
			out["name"] = *r.Record.Name
		}
		if r.Record.URL != nil {
			out["url"] = *r.Record.URL
		}
		if r.Record.Stage != nil {
			out["stage"] = *r.Record.Stage
		}
		if r.Record.Tags != nil {
			out["tags"] = r.Record.Tags
		}
		if r.Record.Note != nil {
			out["note"] = *r.Record.Note
		}
		if r.Record.CreatedAt > 0 {
			out["createdAt"] = r.Record.CreatedAt
		}
		return json.Marshal(out)
	default:
		return []byte("null"), nil
	}
}

// decodeRecord reads each known field leniently; wrong types are treated as absent.
func decodeRecord(fields map[string]json.RawMessage) Record {
	var rec Record
	rec.ID = stringField(fields["id"])
	rec.Name = stringField(fields["name"])
	rec.URL = stringField(fields["url"])
	rec.Stage = stringField(fields["stage"])
	rec.Note = stringField(fields["note"])
	rec.Tags = tagsField(fields["tags"])
	rec.Starred = truthy(fields["starred"])
	rec.CreatedAt = millisField(fields["createdAt"])
	return rec
}

func stringField(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// tagsField accepts either an array of strings or a comma-separated string.
func tagsField(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		tags := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	if s := stringField(raw); s != nil {
		return strings.Split(*s, ",")
	}
	return nil
}

// truthy mirrors loose boolean coercion: true, non-zero numbers and non-empty strings.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func millisField(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	if f <= 0 || math.IsInf(f, 0) || f > math.MaxInt64 {
		return 0
	}
	return int64(f)
}

// Defaults supplies values for fields missing from a Raw entry.
type Defaults struct {
	NewID func() string
	Now   int64 // Unix milliseconds
}

// Normalize coerces a Raw entry into a fully populated Lead.
// It reports false when the entry cannot be coerced (invalid shape or no link);
// callers drop such entries silently.
func Normalize(r Raw, d Defaults) (Lead, bool) {
	switch r.Kind {
	case RawLegacyURL:
		link := NormalizeURL(r.URL)
		if link == "" {
			return Lead{}, false
		}
		return Lead{
			ID:        d.NewID(),
			Name:      DeriveTitle(link),
			URL:       link,
			Stage:     DefaultStage,
			Tags:      []string{},
			Note:      "",
			Starred:   false,
			CreatedAt: d.Now,
		}, true

	case RawRecord:
		rec := r.Record
		link := NormalizeURL(deref(rec.URL))
		if link == "" {
			return Lead{}, false
		}

		id := strings.TrimSpace(deref(rec.ID))
		if id == "" {
			id = d.NewID()
		}
		name := strings.TrimSpace(deref(rec.Name))
		if name == "" {
			name = DeriveTitle(link)
		}
		createdAt := rec.CreatedAt
		if createdAt <= 0 {
			createdAt = d.Now
		}

		return Lead{
			ID:        id,
			Name:      name,
			URL:       link,
			Stage:     coerceStage(deref(rec.Stage)),
			Tags:      CleanTags(rec.Tags),
			Note:      deref(rec.Note),
			Starred:   rec.Starred,
			CreatedAt: createdAt,
		}, true

	default:
		return Lead{}, false
	}
}

// NormalizeAll normalizes entries in order, dropping those that cannot be
// coerced and those whose id repeats an earlier entry.
func NormalizeAll(raws []Raw, d Defaults) []Lead {
	leads := make([]Lead, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, r := range raws {
		l, ok := Normalize(r, d)
		if !ok || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		leads = append(leads, l)
	}
	return leads
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
