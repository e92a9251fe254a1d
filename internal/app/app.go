// Package app builds the archiver's long-lived services from configuration
// and hands out the pipeline stages wired to them.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
	pgcatalog "github.com/JakeFAU/jurisprudence-archiver/internal/catalog/postgres"
	"github.com/JakeFAU/jurisprudence-archiver/internal/clock/system"
	"github.com/JakeFAU/jurisprudence-archiver/internal/config"
	collyfetcher "github.com/JakeFAU/jurisprudence-archiver/internal/fetcher/colly"
	"github.com/JakeFAU/jurisprudence-archiver/internal/id/uuid"
	"github.com/JakeFAU/jurisprudence-archiver/internal/logging"
	"github.com/JakeFAU/jurisprudence-archiver/internal/metrics"
	"github.com/JakeFAU/jurisprudence-archiver/internal/pdf"
	"github.com/JakeFAU/jurisprudence-archiver/internal/pipeline"
	"github.com/JakeFAU/jurisprudence-archiver/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/jurisprudence-archiver/internal/publisher/pubsub"
	chromedprender "github.com/JakeFAU/jurisprudence-archiver/internal/render/chromedp"
	"github.com/JakeFAU/jurisprudence-archiver/internal/render/wkhtml"
	"github.com/JakeFAU/jurisprudence-archiver/internal/scrape"
	gcsstorage "github.com/JakeFAU/jurisprudence-archiver/internal/storage/gcs"
	localstorage "github.com/JakeFAU/jurisprudence-archiver/internal/storage/local"
	"github.com/JakeFAU/jurisprudence-archiver/internal/title"
)

// App contains the application's dependencies.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runID   string
	clock   archive.Clock
	site    archive.Site
	limiter *ratelimit.Limiter
	fetcher *collyfetcher.Fetcher

	detailed *localstorage.BlobStore
	raw      *localstorage.BlobStore
	cleaned  archive.BlobStore

	catalog         *pgcatalog.CaseStore
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
	rendererClose   func() error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{
		cfg:    cfg,
		logger: logger,
		runID:  runID,
		clock:  system.New(),
		site:   archive.Site{BaseURL: cfg.Site.BaseURL, Collection: cfg.Site.Collection},
	}
	app.logger.Info("building application dependencies",
		zap.String("base_url", cfg.Site.BaseURL),
		zap.String("render_engine", cfg.Render.Engine),
		zap.String("storage_provider", cfg.Storage.Provider),
	)

	app.limiter = ratelimit.New(ratelimit.Config{RPS: cfg.HTTP.RequestsPerSecond, Burst: 1})
	app.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
	}, collyfetcher.WithLimiter(app.limiter))

	if err := app.setupStorage(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.setupCatalog(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.setupPublisher(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) setupStorage(ctx context.Context) error {
	var err error
	a.detailed, err = localstorage.New(localstorage.Config{BaseDir: a.cfg.Paths.Detailed})
	if err != nil {
		return fmt.Errorf("detailed store init failed: %w", err)
	}
	a.raw, err = localstorage.New(localstorage.Config{BaseDir: a.cfg.Paths.Downloads})
	if err != nil {
		return fmt.Errorf("downloads store init failed: %w", err)
	}

	switch a.cfg.Storage.Provider {
	case config.ProviderGCS:
		a.logger.Info("using GCS storage backend for cleaned documents")
		a.storage, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.cleaned, err = gcsstorage.New(a.storage, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Debug("GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
	default:
		a.logger.Info("using local storage backend for cleaned documents")
		a.cleaned, err = localstorage.New(localstorage.Config{BaseDir: a.cfg.Paths.Cleaned})
		if err != nil {
			return fmt.Errorf("cleaned store init failed: %w", err)
		}
		a.logger.Debug("local storage backend", zap.String("path", a.cfg.Paths.Cleaned))
	}
	return nil
}

func (a *App) setupCatalog(ctx context.Context) error {
	if a.cfg.Catalog.DSN == "" {
		a.logger.Debug("no catalog DSN configured, case catalog disabled")
		return nil
	}
	var err error
	a.catalog, err = pgcatalog.New(ctx, pgcatalog.Config{
		DSN:      a.cfg.Catalog.DSN,
		Table:    a.cfg.Catalog.Table,
		MaxConns: a.cfg.Catalog.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("case catalog init failed: %w", err)
	}
	a.logger.Info("case catalog initialized", zap.String("table", a.cfg.Catalog.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.Topic == "" {
		a.logger.Debug("no Pub/Sub topic configured, cleaned events disabled")
		return nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher = gcppublisher.New(a.pubsubClient, map[string]string{"run_id": a.runID})
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.Topic),
	)
	return nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// RunID returns the UUIDv7 identifying this run.
func (a *App) RunID() string { return a.runID }

// Clock returns the wall clock.
func (a *App) Clock() archive.Clock { return a.clock }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Scraper wires the scrape stage.
func (a *App) Scraper() *pipeline.Scraper {
	var catalog archive.CaseCatalog
	if a.catalog != nil {
		catalog = a.catalog
	}
	return pipeline.NewScraper(
		scrape.NewIndexFetcher(a.fetcher, a.site, a.logger),
		scrape.NewDetailExtractor(a.fetcher, a.cfg.HTTP.Timeout),
		a.detailed,
		catalog,
		a.cfg.Scrape.Workers,
		a.logger,
	)
}

// Downloader wires the download stage, starting the configured renderer.
// The renderer is released by Close.
func (a *App) Downloader() (*pipeline.Downloader, error) {
	renderer, err := a.renderer()
	if err != nil {
		return nil, err
	}
	return pipeline.NewDownloader(renderer, a.raw, a.site, a.cfg.Download.Workers, a.logger), nil
}

func (a *App) renderer() (archive.Renderer, error) {
	switch a.cfg.Render.Engine {
	case config.EngineWkhtmltopdf:
		r, err := wkhtml.New(wkhtml.Config{
			BinaryPath:      a.cfg.Render.BinaryPath,
			JavaScriptDelay: a.cfg.Render.JavaScriptDelay,
			Timeout:         a.cfg.Render.Timeout,
		}, a.limiter, a.logger)
		if err != nil {
			return nil, fmt.Errorf("renderer init failed: %w", err)
		}
		a.logger.Info("using wkhtmltopdf renderer", zap.String("binary", a.cfg.Render.BinaryPath))
		return r, nil
	default:
		r, err := chromedprender.New(chromedprender.Config{
			UserAgent:       a.cfg.HTTP.UserAgent,
			MaxParallel:     a.cfg.Render.MaxParallel,
			Timeout:         a.cfg.Render.Timeout,
			JavaScriptDelay: a.cfg.Render.JavaScriptDelay,
			NoSandbox:       a.cfg.Render.DisableSandboxed,
		}, a.limiter, a.logger)
		if err != nil {
			return nil, fmt.Errorf("renderer init failed: %w", err)
		}
		a.rendererClose = r.Close
		a.logger.Info("using chromedp renderer", zap.Int("max_parallel", a.cfg.Render.MaxParallel))
		return r, nil
	}
}

// Cleaner wires the clean stage with a fresh untitled sequence.
func (a *App) Cleaner() *pipeline.Cleaner {
	var publisher archive.Publisher
	if a.pubsubPublisher != nil {
		publisher = a.pubsubPublisher
	}
	return pipeline.NewCleaner(
		pdf.NewProcessor(),
		title.NewDeriver(&title.Sequencer{}),
		a.cleaned,
		publisher,
		pipeline.CleanerConfig{
			Workers: a.cfg.Clean.Workers,
			Phrases: a.cfg.Clean.WatermarkPhrases(),
			Topic:   a.cfg.PubSub.Topic,
			RunID:   a.runID,
		},
		a.logger,
	)
}

// Close releases every external resource. Safe to call more than once.
func (a *App) Close() {
	if a.rendererClose != nil {
		if err := a.rendererClose(); err != nil {
			a.logger.Warn("renderer close failed", zap.Error(err))
		}
		a.rendererClose = nil
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Close()
		a.pubsubPublisher = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.catalog != nil {
		a.catalog.Close()
		a.catalog = nil
	}
	// Sync fails on terminals; nothing useful to do about it.
	_ = a.logger.Sync() //nolint:errcheck // see above
}
