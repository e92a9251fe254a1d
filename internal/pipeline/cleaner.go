package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
	"github.com/JakeFAU/jurisprudence-archiver/internal/hash/sha256"
	"github.com/JakeFAU/jurisprudence-archiver/internal/metrics"
	"github.com/JakeFAU/jurisprudence-archiver/internal/pool"
	"github.com/JakeFAU/jurisprudence-archiver/internal/title"
)

// CleanerConfig tunes the sanitize stage.
type CleanerConfig struct {
	Workers int
	// Phrases are removed from every page.
	Phrases []string
	// Topic receives a CleanedEvent per cleaned document when a publisher is set.
	Topic string
	RunID string
}

// CleanResult is the outcome of sanitizing one raw document.
type CleanResult struct {
	// Source is the raw document key relative to the downloads root.
	Source string
	Period archive.Period
	Key    string
	URI    string
	SHA256 string
	Title  title.Result
	Stats  archive.SanitizeStats
	Status Status
	Err    error
}

// CleanedEvent is published for every cleaned document.
type CleanedEvent struct {
	RunID         string `json:"run_id"`
	Source        string `json:"source"`
	Period        string `json:"period"`
	Title         string `json:"title"`
	TitleStrategy string `json:"title_strategy"`
	URI           string `json:"uri"`
	SHA256        string `json:"sha256"`
	Pages         int    `json:"pages"`
	ImagesRemoved int    `json:"images_removed"`
	RunsRedacted  int    `json:"runs_redacted"`
}

// Cleaner sanitizes raw PDFs and files them under their derived titles.
type Cleaner struct {
	processor archive.PDFProcessor
	deriver   *title.Deriver
	store     archive.BlobStore
	publisher archive.Publisher
	hasher    archive.Hasher
	cfg       CleanerConfig
	logger    *zap.Logger
}

// NewCleaner builds a Cleaner writing to store. publisher may be nil.
func NewCleaner(
	processor archive.PDFProcessor,
	deriver *title.Deriver,
	store archive.BlobStore,
	publisher archive.Publisher,
	cfg CleanerConfig,
	logger *zap.Logger,
) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deriver == nil {
		deriver = title.NewDeriver(&title.Sequencer{})
	}
	return &Cleaner{
		processor: processor,
		deriver:   deriver,
		store:     store,
		publisher: publisher,
		hasher:    sha256.New(),
		cfg:       cfg,
		logger:    logger.Named(StageClean),
	}
}

// Clean sanitizes the raw document at source, relative to root.
func (c *Cleaner) Clean(ctx context.Context, root, source string) CleanResult {
	started := time.Now()
	defer metrics.TaskStarted(StageClean)()

	res := c.clean(ctx, root, source)
	observe(StageClean, res.Status, started)
	return res
}

func (c *Cleaner) clean(ctx context.Context, root, source string) CleanResult {
	res := CleanResult{Source: source}
	fail := func(err error) CleanResult {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("clean %s: %w", source, err)
		return res
	}

	period, err := archive.ParseRawKey(source)
	if err != nil {
		return fail(err)
	}
	res.Period = period

	// #nosec G304 -- source comes from walking the downloads root.
	raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(source)))
	if err != nil {
		return fail(err)
	}
	out, err := c.sanitize(ctx, raw)
	if err != nil {
		return fail(err)
	}
	res.Stats = out.Stats
	res.Title = c.deriver.Derive(out.FirstPageText)
	res.Key = archive.CleanedKey(period, res.Title.Title)
	if res.SHA256, err = c.hasher.Hash(out.PDF); err != nil {
		return fail(err)
	}

	uri, err := c.store.PutObject(ctx, res.Key, archive.ContentTypePDF, bytes.NewReader(out.PDF))
	if err != nil {
		return fail(err)
	}
	res.URI = uri
	res.Status = StatusSaved
	c.announce(ctx, res)
	return res
}

// sanitize runs the processor, turning a panic into a per-document error.
func (c *Cleaner) sanitize(ctx context.Context, raw []byte) (out archive.Sanitized, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = archive.Sanitized{}, fmt.Errorf("sanitize: %w: panic: %v", archive.ErrCorruptDocument, r)
		}
	}()
	return c.processor.Sanitize(ctx, raw, c.cfg.Phrases)
}

func (c *Cleaner) announce(ctx context.Context, res CleanResult) {
	if c.publisher == nil || c.cfg.Topic == "" {
		return
	}
	event := CleanedEvent{
		RunID:         c.cfg.RunID,
		Source:        res.Source,
		Period:        res.Period.String(),
		Title:         res.Title.Title,
		TitleStrategy: res.Title.Strategy,
		URI:           res.URI,
		SHA256:        res.SHA256,
		Pages:         res.Stats.Pages,
		ImagesRemoved: res.Stats.ImagesRemoved,
		RunsRedacted:  res.Stats.RunsRedacted,
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.Topic, event); err != nil {
		c.logger.Warn("publish cleaned event failed", zap.String("source", res.Source), zap.Error(err))
	}
}

// Run cleans every PDF under root. When any document fell back to an
// Untitled_<n> name, the mapping is written to the untitled log at the root
// of the cleaned store.
func (c *Cleaner) Run(ctx context.Context, root string) (Report, error) {
	report := newReport(StageClean)

	sources, err := ListPDFs(root)
	if err != nil {
		return report.finish(), err
	}
	c.logger.Info("cleaning documents", zap.Int("documents", len(sources)))

	clean := func(ctx context.Context, source string) CleanResult {
		return c.Clean(ctx, root, source)
	}
	var untitled []string
	for res := range pool.Run(ctx, c.cfg.Workers, sources, clean) {
		report.Add(res.Status)
		c.log(res)
		if res.Status == StatusSaved && res.Title.Untitled {
			untitled = append(untitled, UntitledLine(res))
		}
	}

	if len(untitled) > 0 {
		uri, err := c.store.PutObject(ctx, archive.UntitledLogName, archive.ContentTypeText,
			strings.NewReader(strings.Join(untitled, "\n")))
		if err != nil {
			c.logger.Error("write untitled log failed", zap.Error(err))
		} else {
			c.logger.Info("untitled log saved", zap.String("uri", uri), zap.Int("entries", len(untitled)))
		}
	}

	final := report.finish()
	c.logger.Info("clean finished", final.Fields()...)
	return final, nil
}

// UntitledLine formats one untitled log entry:
// "Untitled_<n> -> <source file> (<year>/<Mon>)".
func UntitledLine(res CleanResult) string {
	return fmt.Sprintf("%s -> %s (%s)", res.Title.Title, path.Base(res.Source), res.Period)
}

func (c *Cleaner) log(res CleanResult) {
	fields := []zap.Field{zap.String("source", res.Source)}
	if res.Status != StatusSaved {
		c.logger.Error("clean failed", append(fields, zap.Error(res.Err))...)
		return
	}
	c.logger.Info("cleaned and renamed", append(fields,
		zap.String("path", res.Key),
		zap.String("title_strategy", res.Title.Strategy),
		zap.Int("images_removed", res.Stats.ImagesRemoved),
		zap.Int("runs_redacted", res.Stats.RunsRedacted),
	)...)
}

// ListPDFs returns the slash-separated paths of every .pdf file under root,
// relative to root and sorted.
func ListPDFs(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".pdf") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}
