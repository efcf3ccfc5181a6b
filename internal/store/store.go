// Package store owns the in-memory lead collection and its persistence.
// Every mutation updates memory first and then saves the whole collection
// through the configured backend.
package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/leadvault/internal/config"
	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
	"github.com/hpungsan/leadvault/internal/storage"
)

// Titler looks up a page title for a link.
type Titler interface {
	Title(ctx context.Context, link string) (string, error)
}

// Options configures a Store. Zero values select defaults.
type Options struct {
	Config *config.Config
	Home   string           // base directory; exports live in Home/exports
	Now    func() time.Time // clock, default time.Now
	NewID  func() string    // id generator, default follows Config.IDFormat
	Titler Titler           // page title lookup for Capture, optional
}

// Store is the lead collection, most recent first.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	leads   []lead.Lead

	cfg    *config.Config
	home   string
	now    func() time.Time
	newID  func() string
	titler Titler
}

// New returns a Store backed by backend. Call Load before use.
func New(backend storage.Backend, opts Options) *Store {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Store{
		backend: backend,
		leads:   []lead.Lead{},
		cfg:     cfg,
		home:    opts.Home,
		now:     opts.Now,
		newID:   opts.NewID,
		titler:  opts.Titler,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = IDGenerator(cfg.IDFormat, s.now)
	}
	return s
}

// IDGenerator returns an id generator for format ("ulid" or "uuid").
// Unknown formats fall back to ULID.
func IDGenerator(format string, now func() time.Time) func() string {
	if format == config.IDFormatUUID {
		return uuid.NewString
	}
	return func() string {
		entropy := ulid.Monotonic(rand.Reader, 0)
		return ulid.MustNew(ulid.Timestamp(now()), entropy).String()
	}
}

// Backend returns the persistence backend.
func (s *Store) Backend() storage.Backend { return s.backend }

// Config returns the configuration the store was built with.
func (s *Store) Config() *config.Config { return s.cfg }

// Load replaces the in-memory collection with the persisted one.
// Entries that cannot be normalized are dropped. Nothing is written back.
//
// The lock is held across the backend read so a mutation cannot commit
// between the read and the swap.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raws, err := s.backend.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelled("load")
		}
		return errors.NewInternal(fmt.Errorf("failed to load leads: %w", err))
	}

	s.leads = lead.NormalizeAll(raws, s.defaults())
	return nil
}

// Reload is Load under another name, used when the backing store changed
// outside this process.
func (s *Store) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Leads returns a copy of the whole collection.
func (s *Store) Leads() []lead.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.leads)
}

// Len returns the number of leads.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

// Get returns the lead with id.
func (s *Store) Get(id string) (*lead.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, errors.NewNotFound(id)
	}
	l := s.leads[i].Clone()
	return &l, nil
}

func (s *Store) defaults() lead.Defaults {
	return lead.Defaults{NewID: s.newID, Now: s.now().UnixMilli()}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.leads {
		if s.leads[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked saves the whole collection. The in-memory state is kept
// even when the save fails.
func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.backend.Save(ctx, s.leads); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to save leads: %w", err))
	}
	return nil
}

// prependLocked inserts leads at the front, keeping their order.
func (s *Store) prependLocked(leads ...lead.Lead) {
	merged := make([]lead.Lead, 0, len(leads)+len(s.leads))
	merged = append(merged, leads...)
	s.leads = append(merged, s.leads...)
}

func cloneAll(leads []lead.Lead) []lead.Lead {
	out := make([]lead.Lead, len(leads))
	for i, l := range leads {
		out[i] = l.Clone()
	}
	return out
}

func checkContext(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return errors.NewCancelled(op)
	}
	return nil
}
