// Package wkhtml renders web documents to PDF with the wkhtmltopdf binary.
package wkhtml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
)

// Config locates and tunes the binary.
type Config struct {
	BinaryPath      string
	JavaScriptDelay time.Duration
	Timeout         time.Duration
}

// Waiter gates renders per host.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Renderer implements archive.Renderer by shelling out to wkhtmltopdf.
type Renderer struct {
	binary  string
	cfg     Config
	limiter Waiter
	logger  *zap.Logger
}

// New resolves the binary. It returns an error wrapping
// archive.ErrRendererUnavailable when the binary cannot be found.
func New(cfg Config, limiter Waiter, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "wkhtmltopdf"
	}
	binary, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w: %w", cfg.BinaryPath, archive.ErrRendererUnavailable, err)
	}
	return &Renderer{binary: binary, cfg: cfg, limiter: limiter, logger: logger.Named("wkhtmltopdf")}, nil
}

// Args returns the command line used for url; the PDF is written to stdout.
func (r *Renderer) Args(url string) []string {
	return []string{
		"--quiet",
		"--no-stop-slow-scripts",
		"--javascript-delay", strconv.FormatInt(r.cfg.JavaScriptDelay.Milliseconds(), 10),
		"--load-error-handling", "ignore",
		url,
		"-",
	}
}

// Render runs wkhtmltopdf for url and returns the PDF bytes.
func (r *Renderer) Render(ctx context.Context, url string) ([]byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("render rate limit: %w", err)
		}
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout+r.cfg.JavaScriptDelay)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, r.Args(url)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stdout.Len() > 0 && exitErr.ExitCode() == 1 {
			// Exit code 1 with output means some resources failed to load,
			// which --load-error-handling ignore tolerates.
			r.logger.Debug("render completed with load errors", zap.String("url", url))
		} else {
			return nil, fmt.Errorf("wkhtmltopdf %s: %w: %s", url, err, strings.TrimSpace(stderr.String()))
		}
	}
	if !bytes.HasPrefix(stdout.Bytes(), []byte("%PDF-")) {
		return nil, fmt.Errorf("wkhtmltopdf %s: output is not a PDF", url)
	}
	return stdout.Bytes(), nil
}
