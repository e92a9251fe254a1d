package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
	"github.com/JakeFAU/jurisprudence-archiver/internal/metrics"
	"github.com/JakeFAU/jurisprudence-archiver/internal/pool"
	"github.com/JakeFAU/jurisprudence-archiver/internal/scrape"
)

// LinkLister lists the cases published in one month.
type LinkLister interface {
	Links(ctx context.Context, period archive.Period) []archive.CaseLink
}

// DetailSource fetches the detail of one case.
type DetailSource interface {
	Extract(ctx context.Context, link archive.CaseLink) scrape.DetailResult
}

// MonthResult is the outcome of scraping one month.
type MonthResult struct {
	Period  archive.Period
	Links   int
	Records int
	Failed  int
	URI     string
	Status  Status
	Err     error
}

// Scraper turns monthly listings into per-month JSON collections.
type Scraper struct {
	links   LinkLister
	details DetailSource
	store   archive.BlobStore
	catalog archive.CaseCatalog
	workers int
	logger  *zap.Logger
}

// NewScraper builds a Scraper writing JSON collections to store. catalog may
// be nil.
func NewScraper(
	links LinkLister,
	details DetailSource,
	store archive.BlobStore,
	catalog archive.CaseCatalog,
	workers int,
	logger *zap.Logger,
) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		links:   links,
		details: details,
		store:   store,
		catalog: catalog,
		workers: workers,
		logger:  logger.Named(StageScrape),
	}
}

// Run scrapes every period in order. Months are processed one at a time;
// the cases of a month fan out across the worker pool.
func (s *Scraper) Run(ctx context.Context, periods []archive.Period) Report {
	report := newReport(StageScrape)
	for _, period := range periods {
		if ctx.Err() != nil {
			s.logger.Warn("scrape interrupted", zap.Stringer("period", period), zap.Error(ctx.Err()))
			break
		}
		res := s.ScrapeMonth(ctx, period)
		report.Add(res.Status)
	}
	final := report.finish()
	s.logger.Info("scrape finished", final.Fields()...)
	return final
}

// ScrapeMonth lists one month, extracts every case and writes the records
// that were extracted. A month without records writes nothing.
func (s *Scraper) ScrapeMonth(ctx context.Context, period archive.Period) MonthResult {
	logger := s.logger.With(zap.Stringer("period", period))
	res := MonthResult{Period: period}

	links := s.links.Links(ctx, period)
	res.Links = len(links)
	if len(links) == 0 {
		logger.Info("no cases found, skipping")
		res.Status = StatusEmpty
		return res
	}
	logger.Info("scraping cases", zap.Int("cases", len(links)))

	records := make([]archive.CaseRecord, 0, len(links))
	for r := range pool.Run(ctx, s.workers, links, s.extract) {
		if r.Err != nil {
			res.Failed++
			logger.Warn("case extraction failed", zap.String("document_id", r.Link.DocumentID), zap.Error(r.Err))
			continue
		}
		records = append(records, *r.Record)
	}
	res.Records = len(records)

	if len(records) == 0 {
		logger.Warn("no valid cases extracted", zap.Int("failed", res.Failed))
		res.Status = StatusEmpty
		return res
	}

	uri, err := s.writeMonth(ctx, period, records)
	if err != nil {
		logger.Error("write month failed", zap.Error(err))
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	res.URI = uri
	res.Status = StatusSaved
	logger.Info("saved cases", zap.Int("records", len(records)), zap.Int("failed", res.Failed), zap.String("uri", uri))

	if s.catalog != nil {
		if err := s.catalog.UpsertCases(ctx, period, records); err != nil {
			logger.Warn("catalog upsert failed", zap.Error(err))
		}
	}
	return res
}

func (s *Scraper) extract(ctx context.Context, link archive.CaseLink) scrape.DetailResult {
	started := time.Now()
	defer metrics.TaskStarted(StageScrape)()

	r := s.details.Extract(ctx, link)
	status := StatusSaved
	if r.Err != nil {
		status = StatusFailed
	}
	observe(StageScrape, status, started)
	return r
}

func (s *Scraper) writeMonth(ctx context.Context, period archive.Period, records []archive.CaseRecord) (string, error) {
	data, err := EncodeRecords(records)
	if err != nil {
		return "", err
	}
	key := archive.DetailFileName(period)
	uri, err := s.store.PutObject(ctx, key, archive.ContentTypeJSON, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return uri, nil
}

// EncodeRecords renders records as a 2-space indented JSON array. HTML
// characters and non-ASCII text are written as-is.
func EncodeRecords(records []archive.CaseRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeRecords parses a JSON collection written by EncodeRecords.
func DecodeRecords(data []byte) ([]archive.CaseRecord, error) {
	var records []archive.CaseRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

// PeriodRange lists the months to scrape: fromYear through toYear, never past
// the month containing now. A non-empty month restricts every year to that
// month. toYear <= 0 means the current year.
func PeriodRange(fromYear, toYear int, month string, now time.Time) ([]archive.Period, error) {
	current := archive.PeriodOf(now)
	if toYear <= 0 || toYear > current.Year {
		toYear = current.Year
	}
	if fromYear > toYear {
		return nil, fmt.Errorf("from year %d is after to year %d", fromYear, toYear)
	}

	end := archive.Period{Year: toYear, Month: time.December}
	if current.Before(end) {
		end = current
	}
	all := archive.Periods(archive.Period{Year: fromYear, Month: time.January}, end)
	if month == "" {
		return all, nil
	}

	m, err := archive.ParseMonthAbbrev(month)
	if err != nil {
		return nil, err
	}
	out := make([]archive.Period, 0, len(all)/12+1)
	for _, p := range all {
		if p.Month == m {
			out = append(out, p)
		}
	}
	return out, nil
}
