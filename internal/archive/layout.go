package archive

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Content types written by the stages.
const (
	ContentTypeJSON = "application/json"
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain; charset=utf-8"
)

// UntitledLogName is the fallback log written at the cleaned root.
const UntitledLogName = "untitled_log.txt"

var detailFileRE = regexp.MustCompile(`^jurisprudence_(\d{4})_([A-Z][a-z]{2})\.json$`)

// Site builds the URLs of the E-Library endpoints.
type Site struct {
	BaseURL    string
	Collection int
}

// ListingURL returns the monthly listing page for period.
func (s Site) ListingURL(p Period) string {
	return fmt.Sprintf("%s/thebookshelf/docmonth/%s/%d/%d", s.base(), p.MonthAbbrev(), p.Year, s.Collection)
}

// DocumentPathMarker is the href fragment that identifies case links on a listing page.
func (s Site) DocumentPathMarker() string {
	return fmt.Sprintf("/thebookshelf/showdocs/%d/", s.Collection)
}

// FriendlyURL returns the print-friendly view of a document, used for rendering.
func (s Site) FriendlyURL(documentID string) string {
	return fmt.Sprintf("%s/thebookshelf/showdocsfriendly/%d/%s", s.base(), s.Collection, documentID)
}

// Absolute resolves a listing href against the site base URL.
func (s Site) Absolute(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return s.base() + href
}

func (s Site) base() string {
	return strings.TrimRight(s.BaseURL, "/")
}

// DetailFileName is the JSON collection name for a period.
func DetailFileName(p Period) string {
	return fmt.Sprintf("jurisprudence_%d_%s.json", p.Year, p.MonthAbbrev())
}

// ParseDetailFileName extracts the period from a JSON collection name.
func ParseDetailFileName(name string) (Period, error) {
	m := detailFileRE.FindStringSubmatch(name)
	if m == nil {
		return Period{}, fmt.Errorf("detail file %q: %w", name, ErrMalformedPath)
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return Period{}, fmt.Errorf("detail file %q: %w", name, ErrMalformedPath)
	}
	month, err := ParseMonthAbbrev(m[2])
	if err != nil {
		return Period{}, err
	}
	return Period{Year: year, Month: month}, nil
}

// RawKey is the store key of a downloaded document.
func RawKey(p Period, documentID string) string {
	return path.Join(strconv.Itoa(p.Year), p.MonthAbbrev(), documentID+".pdf")
}

// CleanedKey is the store key of a cleaned document.
func CleanedKey(p Period, title string) string {
	return path.Join(strconv.Itoa(p.Year), p.MonthAbbrev(), title+".pdf")
}

// ParseRawKey recovers the period from a key relative to the downloads root.
// Only the first two components are significant.
func ParseRawKey(key string) (Period, error) {
	parts := strings.Split(path.Clean(key), "/")
	if len(parts) < 3 {
		return Period{}, fmt.Errorf("raw document %q: %w", key, ErrMalformedPath)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("raw document %q: year: %w", key, ErrMalformedPath)
	}
	month, err := ParseMonthAbbrev(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("raw document %q: %w", key, err)
	}
	return Period{Year: year, Month: month}, nil
}
