package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/app"
	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
	"github.com/JakeFAU/jurisprudence-archiver/internal/pipeline"
)

// periodFlags narrow the months a scrape covers.
type periodFlags struct {
	fromYear int
	toYear   int
	month    string
}

func (f *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.fromYear, "from-year", 0, "first year to scrape (default scrape.from_year)")
	cmd.Flags().IntVar(&f.toYear, "to-year", 0, "last year to scrape (default current year)")
	cmd.Flags().StringVar(&f.month, "month", "", "only scrape this month (Jan..Dec)")
}

func (f *periodFlags) periods(a *app.App) ([]archive.Period, error) {
	from := f.fromYear
	if from == 0 {
		from = a.Config().Scrape.FromYear
	}
	periods, err := pipeline.PeriodRange(from, f.toYear, f.month, a.Clock().Now())
	if err != nil {
		return nil, fmt.Errorf("resolve months: %w", err)
	}
	return periods, nil
}

func newScrapeCmd() *cobra.Command {
	var flags periodFlags
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape monthly listings into per-month JSON collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runScrape(cmd.Context(), a, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Render every scraped case to a raw PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runDownload(cmd.Context(), a)
		},
	}
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Strip watermarks and images from raw PDFs and rename them by citation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runClean(cmd.Context(), a)
		},
	}
}

func newRunCmd() *cobra.Command {
	var flags periodFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape, download and clean in sequence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := runScrape(ctx, a, &flags); err != nil {
				return err
			}
			if err := runDownload(ctx, a); err != nil {
				return err
			}
			return runClean(ctx, a)
		},
	}
	flags.register(cmd)
	return cmd
}

func runScrape(ctx context.Context, a *app.App, flags *periodFlags) error {
	periods, err := flags.periods(a)
	if err != nil {
		return err
	}
	a.Logger().Info("scrape starting", zap.Int("months", len(periods)))
	a.Scraper().Run(ctx, periods)
	return nil
}

func runDownload(ctx context.Context, a *app.App) error {
	d, err := a.Downloader()
	if err != nil {
		return err
	}
	if _, err := d.Run(ctx, a.Config().Paths.Detailed); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return nil
}

func runClean(ctx context.Context, a *app.App) error {
	if _, err := a.Cleaner().Run(ctx, a.Config().Paths.Downloads); err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	return nil
}
