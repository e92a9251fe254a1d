package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
	"github.com/JakeFAU/jurisprudence-archiver/internal/scrape"
)

var testSite = archive.Site{BaseURL: "https://elibrary.example", Collection: 28}

type fakeLister struct {
	links map[archive.Period][]archive.CaseLink
}

func (f fakeLister) Links(_ context.Context, p archive.Period) []archive.CaseLink {
	return f.links[p]
}

type fakeDetails struct {
	failing map[string]bool
}

func (f fakeDetails) Extract(_ context.Context, link archive.CaseLink) scrape.DetailResult {
	if f.failing[link.DocumentID] {
		return scrape.DetailResult{Link: link, Err: errors.New("status 404: not found")}
	}
	return scrape.DetailResult{Link: link, Record: &archive.CaseRecord{
		DocumentID: link.DocumentID,
		URL:        link.URL,
		Title:      "G.R. No. " + link.DocumentID,
		Date:       "January 2, 1990",
		Excerpt:    "excerpt " + link.DocumentID,
	}}
}

type fakeCatalog struct {
	mu      sync.Mutex
	periods []archive.Period
	records []archive.CaseRecord
	err     error
}

func (f *fakeCatalog) UpsertCases(_ context.Context, p archive.Period, recs []archive.CaseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.periods = append(f.periods, p)
	f.records = append(f.records, recs...)
	return f.err
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *fakeRenderer) Render(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return []byte("%PDF-1.4 " + url), nil
}

func (f *fakeRenderer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeProcessor treats the raw bytes as the first-page text. Content starting
// with "corrupt" fails and content starting with "panic" panics.
type fakeProcessor struct{}

func (fakeProcessor) Sanitize(ctx context.Context, pdf []byte, phrases []string) (archive.Sanitized, error) {
	if err := ctx.Err(); err != nil {
		return archive.Sanitized{}, err
	}
	text := string(pdf)
	if strings.HasPrefix(text, "corrupt") {
		return archive.Sanitized{}, errors.New("malformed xref table")
	}
	if strings.HasPrefix(text, "panic") {
		panic("slice bounds out of range [-1:]")
	}
	cleaned := text
	removed := 0
	for _, p := range phrases {
		removed += strings.Count(cleaned, p)
		cleaned = strings.ReplaceAll(cleaned, p, "")
	}
	return archive.Sanitized{
		PDF:           []byte("cleaned:" + cleaned),
		FirstPageText: text,
		Stats:         archive.SanitizeStats{Pages: 1, RunsRedacted: removed},
	}, nil
}

type publishedMessage struct {
	Topic   string
	Payload any
}

// recordingPublisher keeps every published payload.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

func (p *recordingPublisher) Messages() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}
