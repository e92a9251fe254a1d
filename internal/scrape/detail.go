package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

const (
	untitled    = "Untitled"
	unknownDate = "Unknown"
)

// DetailResult is the outcome of one detail extraction. Record is nil on failure.
type DetailResult struct {
	Link   archive.CaseLink
	Record *archive.CaseRecord
	Err    error
}

// ParseDetail extracts title, date and excerpt from a case page.
func ParseDetail(link archive.CaseLink, body []byte) (archive.CaseRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return archive.CaseRecord{}, fmt.Errorf("parse detail %s: %w", link.DocumentID, err)
	}

	rec := archive.CaseRecord{
		DocumentID: link.DocumentID,
		URL:        link.URL,
		Title:      untitled,
		Date:       unknownDate,
	}

	// Headings and paragraphs come back in document order, so the date is the
	// first paragraph after the first heading.
	seenTitle := false
	doc.Find("h3, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !seenTitle {
			if goquery.NodeName(s) == "h3" {
				rec.Title = strings.Join(textFragments(s.Nodes[0]), "")
				seenTitle = true
			}
			return true
		}
		if goquery.NodeName(s) == "p" {
			rec.Date = strings.Join(textFragments(s.Nodes[0]), "")
			return false
		}
		return true
	})

	if content := doc.Find("div.content").First(); content.Length() > 0 {
		rec.Excerpt = truncateRunes(strings.Join(textFragments(content.Nodes[0]), "\n"), archive.ExcerptLimit)
	}
	return rec, nil
}

// textFragments collects the descendant text nodes of root, each trimmed,
// empties dropped. Title and date join them with nothing, the excerpt with
// newlines.
func textFragments(root *html.Node) []string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return parts
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// DetailExtractor fetches and parses case pages.
type DetailExtractor struct {
	fetcher archive.Fetcher
	timeout time.Duration
}

// NewDetailExtractor builds a DetailExtractor. Each fetch is bounded by timeout.
func NewDetailExtractor(fetcher archive.Fetcher, timeout time.Duration) *DetailExtractor {
	return &DetailExtractor{fetcher: fetcher, timeout: timeout}
}

// Extract fetches one case page. Failures are reported in the result.
func (e *DetailExtractor) Extract(ctx context.Context, link archive.CaseLink) DetailResult {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	page, err := e.fetcher.Fetch(ctx, link.URL)
	if err != nil {
		return DetailResult{Link: link, Err: fmt.Errorf("case %s: %w", link.DocumentID, err)}
	}
	rec, err := ParseDetail(link, page.Body)
	if err != nil {
		return DetailResult{Link: link, Err: err}
	}
	return DetailResult{Link: link, Record: &rec}
}
