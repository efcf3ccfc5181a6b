// Package ui formats leads for the terminal.
// Styling uses fatih/color; notes are rendered as Markdown with glamour.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/hpungsan/leadvault/internal/lead"
)

var (
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

// stageColors gives each pipeline stage a distinct color.
var stageColors = map[lead.Stage]func(a ...any) string{
	lead.StageProspect:   color.New(color.FgBlue).SprintFunc(),
	lead.StageContacted:  color.New(color.FgMagenta).SprintFunc(),
	lead.StageInProgress: color.New(color.FgYellow).SprintFunc(),
	lead.StageWon:        color.New(color.FgGreen).SprintFunc(),
}

const idPrefixLen = 8

// FormatLeadListItem renders one lead as a compact list entry.
func FormatLeadListItem(l lead.Lead, now time.Time) string {
	var sb strings.Builder

	star := " "
	if l.Starred {
		star = yellow("★")
	}
	sb.WriteString(fmt.Sprintf("%s %s  %s  %s\n", star, faint(shortID(l.ID)), bold(l.Name), StageLabel(l.Stage)))
	sb.WriteString(fmt.Sprintf("             %s %s\n", faint(lead.ExtractDomain(l.URL)), faint("· "+lead.RelativeTime(l.CreatedAt, now))))

	if len(l.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("             %s %s\n", faint("Tags:"), cyan(strings.Join(l.Tags, ", "))))
	}

	return sb.String()
}

// FormatLeadList renders leads in order, or an empty-state line.
func FormatLeadList(leads []lead.Lead, now time.Time) string {
	if len(leads) == 0 {
		return faint("No leads yet.") + "\n"
	}
	var sb strings.Builder
	for _, l := range leads {
		sb.WriteString(FormatLeadListItem(l, now))
	}
	return sb.String()
}

// FormatLeadHeader renders the detail header of a lead, followed by a separator.
func FormatLeadHeader(l lead.Lead, now time.Time) string {
	var sb strings.Builder

	title := bold(l.Name)
	if l.Starred {
		title = yellow("★ ") + title
	}
	sb.WriteString(title + "\n")
	sb.WriteString(fmt.Sprintf("%s %s\n", faint("ID:"), faint(l.ID)))
	sb.WriteString(fmt.Sprintf("%s %s\n", faint("Link:"), l.URL))
	sb.WriteString(fmt.Sprintf("%s %s\n", faint("Stage:"), StageLabel(l.Stage)))
	created := lead.CreatedTime(l.CreatedAt).Local().Format("2006-01-02 15:04")
	sb.WriteString(fmt.Sprintf("%s %s %s\n", faint("Created:"), faint(created), faint("("+lead.RelativeTime(l.CreatedAt, now)+")")))

	if len(l.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("%s %s\n", faint("Tags:"), cyan(strings.Join(l.Tags, ", "))))
	}

	sb.WriteString(Separator())
	return sb.String()
}

// FormatNote renders a Markdown note for the terminal.
// Rendering failures fall back to the raw text.
func FormatNote(note string) string {
	if strings.TrimSpace(note) == "" {
		return faint("(no note)") + "\n"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return note + "\n"
	}

	out, err := renderer.Render(note)
	if err != nil {
		return note + "\n"
	}
	return out
}

// FormatMetrics renders the three collection counters.
func FormatMetrics(m lead.Metrics) string {
	return fmt.Sprintf("%s %s   %s %s   %s %s\n",
		faint("Total:"), bold(m.Total),
		faint("Starred:"), bold(m.StarredCount),
		faint("This week:"), bold(m.LastWeekCount))
}

// StageLabel returns the colored display label of a stage.
func StageLabel(s lead.Stage) string {
	if paint, ok := stageColors[s]; ok {
		return paint(s.Label())
	}
	return s.Label()
}

// Separator returns a faint horizontal rule.
func Separator() string {
	return faint(strings.Repeat("─", 50)) + "\n"
}

// Success prefixes msg with a green check mark.
func Success(msg string) string {
	return color.New(color.FgGreen).Sprint("✓ ") + msg
}

// Error prefixes msg with a red cross.
func Error(msg string) string {
	return color.New(color.FgRed).Sprint("✗ ") + msg
}

func shortID(id string) string {
	if len(id) > idPrefixLen {
		return id[:idPrefixLen]
	}
	return id
}
