// Package cmd defines and implements the CLI commands for the archiver executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jurisprudence-archiver/internal/app"
	"github.com/JakeFAU/jurisprudence-archiver/internal/config"
	"github.com/JakeFAU/jurisprudence-archiver/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = app.Build

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var (
		cfgFile     string
		stopMetrics context.CancelFunc
		metricsDone chan struct{}
	)

	cmd := &cobra.Command{
		Use:   "archiver",
		Short: "Archives Philippine Supreme Court decisions from the E-Library.",
		Long: `archiver scrapes the Supreme Court E-Library month by month, renders every
case to PDF and produces cleaned copies with the E-Library watermarks and
images removed, named after the case citation found on the first page.`,
		SilenceUsage: true,

		// Build the application once the flags are parsed and hand it to the
		// subcommand through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			if cfg.Metrics.Addr != "" {
				var metricsCtx context.Context
				metricsCtx, stopMetrics = context.WithCancel(ctx)
				metricsDone = make(chan struct{})
				srv := server.New(appInstance.RunID(), appInstance.Logger())
				go func() {
					defer close(metricsDone)
					if err := srv.ListenAndServe(metricsCtx, cfg.Metrics.Addr); err != nil {
						appInstance.Logger().Error("metrics server error", zap.Error(err))
					}
				}()
			}
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if stopMetrics != nil {
				stopMetrics()
				<-metricsDone
			}
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); ARCHIVER_* env vars override it")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM stop new tasks from
// being submitted; tasks already running are allowed to finish.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "archiver: %v\n", err)
		stop()
		os.Exit(1)
	}
}
