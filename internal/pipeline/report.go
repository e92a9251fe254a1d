package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/metrics"
)

// Stage names, used as metric labels and log fields.
const (
	StageScrape   = "scrape"
	StageDownload = "download"
	StageClean    = "clean"
)

// Status is the outcome of one task.
type Status string

// Task outcomes.
const (
	StatusSaved  Status = "saved"
	StatusExists Status = "exists"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

func (s Status) metricLabel() string {
	switch s {
	case StatusSaved:
		return metrics.StatusSucceeded
	case StatusFailed:
		return metrics.StatusFailed
	default:
		return metrics.StatusSkipped
	}
}

// Report summarizes one stage run.
type Report struct {
	Stage   string
	Saved   int
	Skipped int
	Failed  int
	Elapsed time.Duration

	started time.Time
}

func newReport(stage string) *Report {
	return &Report{Stage: stage, started: time.Now()}
}

// Add counts one task outcome.
func (r *Report) Add(s Status) {
	switch s {
	case StatusSaved:
		r.Saved++
	case StatusFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// Total is the number of tasks counted.
func (r Report) Total() int {
	return r.Saved + r.Skipped + r.Failed
}

func (r *Report) finish() Report {
	r.Elapsed = time.Since(r.started)
	return *r
}

// Fields renders the report as zap fields for the stage summary line.
func (r Report) Fields() []zap.Field {
	return []zap.Field{
		zap.String("stage", r.Stage),
		zap.Int("total", r.Total()),
		zap.Int("saved", r.Saved),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
		zap.Duration("elapsed", r.Elapsed),
	}
}

// observe records a finished task on the stage metrics.
func observe(stage string, s Status, started time.Time) {
	metrics.ObserveTask(stage, s.metricLabel(), time.Since(started))
}
