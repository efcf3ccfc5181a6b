package store

import (
	"context"

	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
)

// ToggleStar flips the starred flag of the lead with id.
func (s *Store) ToggleStar(ctx context.Context, id string) (*lead.Lead, error) {
	if err := checkContext(ctx, "star"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, errors.NewNotFound(id)
	}
	s.leads[i].Starred = !s.leads[i].Starred

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	out := s.leads[i].Clone()
	return &out, nil
}
