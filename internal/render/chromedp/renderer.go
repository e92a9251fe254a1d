// Package chromedprender prints web documents to PDF with headless Chrome.
package chromedprender

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

// Config tunes the renderer.
type Config struct {
	UserAgent       string
	MaxParallel     int
	Timeout         time.Duration
	JavaScriptDelay time.Duration
	NoSandbox       bool
}

// Waiter gates renders per host.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Renderer implements archive.Renderer using chromedp.
type Renderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	limiter         Waiter
	sem             chan struct{}
	cfg             Config
}

// New starts a headless browser. It returns an error wrapping
// archive.ErrRendererUnavailable when Chrome cannot be launched.
func New(cfg Config, limiter Waiter, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	// Chrome emits protocol noise for every page; keep it out of our logs.
	quiet := func(string, ...any) {}
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx, chromedp.WithErrorf(quiet))
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w: %w", archive.ErrRendererUnavailable, err)
	}

	return &Renderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger.Named("chromedp"),
		limiter:         limiter,
		sem:             make(chan struct{}, cfg.MaxParallel),
		cfg:             cfg,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *Renderer) Close() error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// Render navigates to url, waits for the JavaScript delay and prints the page.
// Subresource failures are ignored; a main-document status of 400 or above
// is reported as archive.ErrNotFound.
func (r *Renderer) Render(ctx context.Context, url string) ([]byte, error) {
	if r == nil {
		return nil, archive.ErrRendererUnavailable
	}

	release, err := r.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("render rate limit: %w", err)
		}
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.Timeout+r.cfg.JavaScriptDelay)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := &documentStatus{}
	recordStatus(tabCtx, meta)

	start := time.Now()
	pdf, err := r.print(taskCtx, url)
	if err != nil {
		return nil, fmt.Errorf("print %s: %w", url, err)
	}
	if code := meta.get(); code >= 400 {
		return nil, fmt.Errorf("print %s: status %d: %w", url, code, archive.ErrNotFound)
	}
	r.logger.Debug("rendered", zap.String("url", url), zap.Int("bytes", len(pdf)), zap.Duration("took", time.Since(start)))
	return pdf, nil
}

func (r *Renderer) print(ctx context.Context, url string) ([]byte, error) {
	var pdf []byte
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.cfg.JavaScriptDelay),
		emulation.SetEmulatedMedia().WithMedia("print"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			pdf = buf
			return nil
		}),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	return pdf, nil
}

func (r *Renderer) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

type documentStatus struct {
	once sync.Once
	mu   sync.Mutex
	code int
}

func (d *documentStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.code
}

func recordStatus(tabCtx context.Context, meta *documentStatus) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.mu.Lock()
			meta.code = int(resp.Response.Status)
			meta.mu.Unlock()
		})
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
