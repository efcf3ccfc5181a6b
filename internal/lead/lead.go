package lead

import (
	"fmt"
	"strings"
)

// Lead is a saved link with pipeline metadata.
// JSON field names match the browser-extension storage format so exports
// move between the two without conversion.
type Lead struct {
	// ID uniquely identifies the lead within a collection (ULID or UUID)
	ID string `json:"id" yaml:"id"`

	// Name is the display label
	Name string `json:"name" yaml:"name"`

	// URL is the normalized link, always with an explicit scheme
	URL string `json:"url" yaml:"url"`

	// Stage is the pipeline status
	Stage Stage `json:"stage" yaml:"stage"`

	// Tags are lowercase, trimmed and never empty; entry order is kept
	Tags []string `json:"tags" yaml:"tags"`

	// Note is a free-text annotation
	Note string `json:"note" yaml:"note"`

	// Starred highlights the lead
	Starred bool `json:"starred" yaml:"starred"`

	// CreatedAt is the creation time in Unix milliseconds
	CreatedAt int64 `json:"createdAt" yaml:"createdAt"`
}

// Clone returns a copy that shares no slices with l.
func (l Lead) Clone() Lead {
	c := l
	c.Tags = append([]string(nil), l.Tags...)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

// Stage is the pipeline status of a lead.
type Stage string

const (
	StageProspect   Stage = "prospect"
	StageContacted  Stage = "contacted"
	StageInProgress Stage = "in-progress"
	StageWon        Stage = "won"
)

// DefaultStage is assigned when no stage is given.
const DefaultStage = StageProspect

var stageLabels = map[Stage]string{
	StageProspect:   "Prospect",
	StageContacted:  "Contacted",
	StageInProgress: "In progress",
	StageWon:        "Won",
}

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageProspect, StageContacted, StageInProgress, StageWon}
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	_, ok := stageLabels[s]
	return ok
}

// Label returns the display label, falling back to the prospect label.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return stageLabels[StageProspect]
}

// ParseStage parses a stage name. Empty input yields DefaultStage.
func ParseStage(s string) (Stage, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultStage, nil
	}
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage %q (want one of: prospect, contacted, in-progress, won)", s)
	}
	return stage, nil
}

// coerceStage maps persisted stage values onto the enumeration.
// Unknown values become DefaultStage.
func coerceStage(s string) Stage {
	stage, err := ParseStage(s)
	if err != nil {
		return DefaultStage
	}
	return stage
}
