package store

import (
	"context"
	"strings"

	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
)

// Validation messages shown to the user.
const (
	MsgNameAndLinkRequired = "Name and link are required"
	MsgUnableToReadTab     = "Unable to read tab"
	MsgCaptureDisabled     = "capture is disabled"
)

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	Name  string // required
	URL   string // required, normalized
	Stage string // default: prospect
	Tags  string // comma-separated
	Note  string
}

// Create adds a lead at the front of the collection.
func (s *Store) Create(ctx context.Context, input CreateInput) (*lead.Lead, error) {
	name := strings.TrimSpace(input.Name)
	link := lead.NormalizeURL(input.URL)
	if name == "" || link == "" {
		return nil, errors.NewInvalidRequest(MsgNameAndLinkRequired)
	}

	stage, err := lead.ParseStage(input.Stage)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if err := checkContext(ctx, "create"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := lead.Lead{
		ID:        s.newID(),
		Name:      name,
		URL:       link,
		Stage:     stage,
		Tags:      lead.ParseTags(input.Tags),
		Note:      strings.TrimSpace(input.Note),
		Starred:   false,
		CreatedAt: s.now().UnixMilli(),
	}
	s.prependLocked(l)

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	out := l.Clone()
	return &out, nil
}

// CaptureInput contains parameters for the Capture operation.
type CaptureInput struct {
	URL   string // required
	Title string // optional; looked up with the Titler when empty
}

// Capture saves a link as a new prospect, named after its page title or,
// failing that, its domain.
func (s *Store) Capture(ctx context.Context, input CaptureInput) (*lead.Lead, error) {
	if s.cfg.CaptureDisabled {
		return nil, errors.NewInvalidRequest(MsgCaptureDisabled)
	}
	link := lead.NormalizeURL(input.URL)
	if link == "" {
		return nil, errors.NewInvalidRequest(MsgUnableToReadTab)
	}

	name := strings.TrimSpace(input.Title)
	if name == "" && s.titler != nil {
		// A failed lookup is not fatal; the domain is used instead.
		if title, err := s.titler.Title(ctx, link); err == nil {
			name = strings.TrimSpace(title)
		}
	}
	if name == "" {
		name = lead.DeriveTitle(link)
	}
	if err := checkContext(ctx, "capture"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := lead.Lead{
		ID:        s.newID(),
		Name:      name,
		URL:       link,
		Stage:     lead.DefaultStage,
		Tags:      []string{},
		CreatedAt: s.now().UnixMilli(),
	}
	s.prependLocked(l)

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	out := l.Clone()
	return &out, nil
}
