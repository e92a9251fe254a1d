package archive

import (
	"fmt"
	"time"
)

// ExcerptLimit bounds CaseRecord.Excerpt, counted in characters.
const ExcerptLimit = 1000

// CaseLink references one case document found on a monthly listing page.
type CaseLink struct {
	DocumentID string
	URL        string
}

// CaseRecord is the structured detail of a case page. The JSON tags match the
// files produced by earlier archiver runs and must not change.
type CaseRecord struct {
	DocumentID string `json:"link_number"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	Excerpt    string `json:"full_text"`
}

// Period identifies one month of the archive.
type Period struct {
	Year  int
	Month time.Month
}

// MonthAbbrev returns the three-letter English month name used by the site
// and by the on-disk layout ("Jan" ... "Dec").
func (p Period) MonthAbbrev() string {
	return p.Month.String()[:3]
}

// String renders the period as "<year>/<Mon>".
func (p Period) String() string {
	return fmt.Sprintf("%d/%s", p.Year, p.MonthAbbrev())
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Periods lists every month from start through end inclusive.
func Periods(start, end Period) []Period {
	var out []Period
	for p := start; !end.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}

// ParseMonthAbbrev converts "Jan" ... "Dec" into a time.Month.
func ParseMonthAbbrev(s string) (time.Month, error) {
	for m := time.January; m <= time.December; m++ {
		if m.String()[:3] == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q: %w", s, ErrMalformedPath)
}

// Page is the raw result of an HTML fetch.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// SanitizeStats summarizes what a sanitize pass removed.
type SanitizeStats struct {
	Pages         int
	ImagesRemoved int
	RunsRedacted  int
}

// Sanitized is the output of PDFProcessor.Sanitize.
type Sanitized struct {
	// PDF holds the cleaned document.
	PDF []byte
	// FirstPageText is the text of page one before any redaction.
	FirstPageText string
	Stats         SanitizeStats
}
