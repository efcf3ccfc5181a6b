package store

import (
	"context"

	"github.com/hpungsan/leadvault/internal/lead"
)

// RemoveOutput contains the result of the Remove operation.
type RemoveOutput struct {
	Removed bool   `json:"removed"`
	ID      string `json:"id"`
}

// Remove deletes the lead with id. An unknown id is not an error:
// Removed is false and nothing is written.
func (s *Store) Remove(ctx context.Context, id string) (*RemoveOutput, error) {
	if err := checkContext(ctx, "remove"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return &RemoveOutput{Removed: false, ID: id}, nil
	}
	s.leads = append(s.leads[:i:i], s.leads[i+1:]...)

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	return &RemoveOutput{Removed: true, ID: id}, nil
}

// ClearOutput contains the result of the ClearAll operation.
type ClearOutput struct {
	Cleared int `json:"cleared"`
}

// ClearAll empties the collection. Clearing an empty collection writes nothing.
func (s *Store) ClearAll(ctx context.Context) (*ClearOutput, error) {
	if err := checkContext(ctx, "clear"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.leads)
	if n == 0 {
		return &ClearOutput{Cleared: 0}, nil
	}
	s.leads = []lead.Lead{}

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	return &ClearOutput{Cleared: n}, nil
}
