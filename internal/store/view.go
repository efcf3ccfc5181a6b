package store

import (
	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
)

// ViewInput contains parameters for the View operation.
type ViewInput struct {
	Filter string // "all" (default), "starred" or a stage name
	Search string
}

// ViewOutput is the filtered collection plus summary counts.
type ViewOutput struct {
	Leads   []lead.Lead      `json:"leads"`
	Filter  lead.StageFilter `json:"filter"`
	Search  string           `json:"search,omitempty"`
	Metrics lead.Metrics     `json:"metrics"`
}

// View returns the leads matching the filter and search term, in collection
// order. Metrics always cover the whole collection.
func (s *Store) View(input ViewInput) (*ViewOutput, error) {
	filter, err := lead.ParseFilter(input.Filter)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return &ViewOutput{
		Leads:   cloneAll(lead.Filter(s.leads, filter, input.Search)),
		Filter:  filter,
		Search:  input.Search,
		Metrics: lead.ComputeMetrics(s.leads, s.now()),
	}, nil
}

// Metrics summarizes the whole collection.
func (s *Store) Metrics() lead.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lead.ComputeMetrics(s.leads, s.now())
}
