package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
	"github.com/JakeFAU/jurisprudence-archiver/internal/metrics"
	"github.com/JakeFAU/jurisprudence-archiver/internal/pool"
)

// DownloadResult is the outcome of acquiring one raw document.
type DownloadResult struct {
	DocumentID string
	Period     archive.Period
	Key        string
	URI        string
	Status     Status
	Err        error
}

// Downloader renders case documents to raw PDFs.
type Downloader struct {
	renderer archive.Renderer
	store    archive.BlobStore
	site     archive.Site
	workers  int
	logger   *zap.Logger
}

// NewDownloader builds a Downloader writing raw PDFs to store.
func NewDownloader(
	renderer archive.Renderer,
	store archive.BlobStore,
	site archive.Site,
	workers int,
	logger *zap.Logger,
) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		renderer: renderer,
		store:    store,
		site:     site,
		workers:  workers,
		logger:   logger.Named(StageDownload),
	}
}

// Acquire renders one case unless its raw PDF already exists. Failures are
// reported in the result and never retried.
func (d *Downloader) Acquire(ctx context.Context, period archive.Period, rec archive.CaseRecord) DownloadResult {
	started := time.Now()
	defer metrics.TaskStarted(StageDownload)()

	res := d.acquire(ctx, period, rec)
	observe(StageDownload, res.Status, started)
	return res
}

func (d *Downloader) acquire(ctx context.Context, period archive.Period, rec archive.CaseRecord) DownloadResult {
	res := DownloadResult{DocumentID: rec.DocumentID, Period: period}
	fail := func(err error) DownloadResult {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("error saving %s: %w", rec.DocumentID, err)
		return res
	}

	if strings.TrimSpace(rec.DocumentID) == "" || strings.ContainsAny(rec.DocumentID, `/\`) {
		return fail(fmt.Errorf("invalid link number %q", rec.DocumentID))
	}
	res.Key = archive.RawKey(period, rec.DocumentID)

	exists, err := d.store.Exists(ctx, res.Key)
	if err != nil {
		return fail(err)
	}
	if exists {
		res.Status = StatusExists
		return res
	}

	pdf, err := d.renderer.Render(ctx, d.site.FriendlyURL(rec.DocumentID))
	if err != nil {
		return fail(err)
	}
	uri, err := d.store.PutObject(ctx, res.Key, archive.ContentTypePDF, bytes.NewReader(pdf))
	if err != nil {
		return fail(err)
	}
	res.URI = uri
	res.Status = StatusSaved
	return res
}

// Run acquires every case listed in the JSON collections under detailedDir.
// Collections are processed in name order; files whose names do not follow
// the collection pattern are skipped.
func (d *Downloader) Run(ctx context.Context, detailedDir string) (Report, error) {
	report := newReport(StageDownload)

	entries, err := os.ReadDir(detailedDir)
	if err != nil {
		return report.finish(), fmt.Errorf("read %s: %w", detailedDir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if ctx.Err() != nil {
			d.logger.Warn("download interrupted", zap.Error(ctx.Err()))
			break
		}
		period, err := archive.ParseDetailFileName(name)
		if err != nil {
			d.logger.Warn("skipping malformed filename", zap.String("file", name), zap.Error(err))
			continue
		}
		d.runMonth(ctx, period, filepath.Join(detailedDir, name), report)
	}

	final := report.finish()
	d.logger.Info("download finished", final.Fields()...)
	return final, nil
}

func (d *Downloader) runMonth(ctx context.Context, period archive.Period, path string, report *Report) {
	logger := d.logger.With(zap.Stringer("period", period))

	// #nosec G304 -- path is built from a directory listing of the detailed root.
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read collection failed", zap.String("path", path), zap.Error(err))
		return
	}
	records, err := DecodeRecords(data)
	if err != nil {
		logger.Error("decode collection failed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("processing month", zap.Int("cases", len(records)))

	acquire := func(ctx context.Context, rec archive.CaseRecord) DownloadResult {
		return d.Acquire(ctx, period, rec)
	}
	for res := range pool.Run(ctx, d.workers, records, acquire) {
		report.Add(res.Status)
		d.log(logger, res)
	}
}

func (d *Downloader) log(logger *zap.Logger, res DownloadResult) {
	fields := []zap.Field{zap.String("document_id", res.DocumentID), zap.String("path", res.Key)}
	switch res.Status {
	case StatusSaved:
		logger.Info("saved pdf", append(fields, zap.String("uri", res.URI))...)
	case StatusExists:
		logger.Info("already exists", fields...)
	default:
		level := logger.Error
		if errors.Is(res.Err, context.Canceled) {
			level = logger.Warn
		}
		level("download failed", append(fields, zap.Error(res.Err))...)
	}
}
