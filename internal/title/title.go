// Package title derives cleaned-document file names from first-page text.
package title

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
)

// Strategy extracts a title candidate from page text. ok is false when the
// strategy does not apply.
type Strategy interface {
	Name() string
	Extract(text string) (title string, ok bool)
}

var (
	citationPattern = regexp.MustCompile(`\b(\d+)\s+(Phil\.|SCRA|OG|SCAD)\s+(\d+)`)
	statutePattern  = regexp.MustCompile(`(?i)(Acts?\s+No\.?\s?\d+)`)
)

// Citation matches reporter citations such as "123 Phil. 456".
type Citation struct{}

// Name implements Strategy.
func (Citation) Name() string { return "citation" }

// Extract implements Strategy.
func (Citation) Extract(text string) (string, bool) {
	m := citationPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	reporter := strings.ReplaceAll(m[2], ".", "")
	return fmt.Sprintf("%s_%s_%s", m[1], reporter, m[3]), true
}

// Statute matches statute references such as "Act No. 3815".
type Statute struct{}

// Name implements Strategy.
func (Statute) Name() string { return "statute" }

// Extract implements Strategy.
func (Statute) Extract(text string) (string, bool) {
	m := statutePattern.FindString(text)
	if m == "" {
		return "", false
	}
	name := SanitizeFilename(m)
	if name == "" {
		return "", false
	}
	return name, true
}

// DefaultStrategies returns the citation then statute strategies.
func DefaultStrategies() []Strategy {
	return []Strategy{Citation{}, Statute{}}
}

// Sequencer issues Untitled_<n> names. Safe for concurrent use; numbers are
// unique and strictly increasing in issue order.
type Sequencer struct {
	next atomic.Int64
}

// Next returns the next fallback title.
func (s *Sequencer) Next() string {
	return fmt.Sprintf("Untitled_%d", s.next.Add(1))
}

// Result describes how a title was obtained.
type Result struct {
	Title    string
	Strategy string
	Untitled bool
}

// Deriver applies strategies in order and falls back to the sequencer.
type Deriver struct {
	strategies []Strategy
	seq        *Sequencer
}

// NewDeriver builds a Deriver. A nil strategy list uses DefaultStrategies.
func NewDeriver(seq *Sequencer, strategies ...Strategy) *Deriver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	if seq == nil {
		seq = &Sequencer{}
	}
	return &Deriver{strategies: strategies, seq: seq}
}

// Derive returns the sanitized title for the given page text.
func (d *Deriver) Derive(text string) Result {
	for _, s := range d.strategies {
		if t, ok := s.Extract(text); ok {
			return Result{Title: SanitizeFilename(t), Strategy: s.Name()}
		}
	}
	return Result{Title: d.seq.Next(), Strategy: "untitled", Untitled: true}
}

var filenameReplacer = strings.NewReplacer(
	`\`, "", "/", "", "*", "", "?", "", ":", "", `"`, "",
	"<", "", ">", "", "|", "", ",", "", "\n", "", "\r", "",
)

// SanitizeFilename strips characters unsafe in file names, trims whitespace
// and replaces spaces with underscores.
func SanitizeFilename(s string) string {
	s = filenameReplacer.Replace(s)
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, " ", "_")
}
