package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/pipeline"
	"github.com/conneroisu/sitepress/internal/services"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild the site whenever its sources change",
	Long: `Build the site, then watch the source tree, the compiled bundle
directory, the dependency manifest and the passthrough files, rebuilding
after each burst of changes. A failed build is reported and the watch
continues.

Examples:
  sitepress watch                       # Watch with the configured debounce
  sitepress watch --debounce 1s         # Wait longer for changes to settle`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before a rebuild (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if d, _ := cmd.Flags().GetDuration("debounce"); d > 0 {
		cfg.Serve.Debounce = d
	}
	keepCompiled(cfg, logger)

	svc, err := services.NewBuildService(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watch := services.NewWatchService(cfg, svc, logger)
	return watch.Watch(ctx, printSummary(cmd.OutOrStdout()))
}

// keepCompiled turns off bundles.clean_compiled for long-running sessions.
// Rebuilds triggered by page or style edits reuse the compiled bundles.
func keepCompiled(cfg *config.Config, logger logging.Logger) {
	if !cfg.Bundles.CleanCompiled {
		return
	}
	cfg.Bundles.CleanCompiled = false
	logger.Info(context.Background(), "ignoring bundles.clean_compiled while watching")
}

// printSummary returns a callback writing one line per build.
func printSummary(w io.Writer) services.BuildCallback {
	return func(report *pipeline.Report, err error) {
		if report == nil {
			return
		}
		if err != nil {
			fmt.Fprintf(w, "build %s failed after %s: %v\n", report.Token, report.Duration, err)
			return
		}
		fmt.Fprintf(w, "build %s done in %s (%d artifacts, %d warnings)\n",
			report.Token, report.Duration, len(report.Artifacts()), len(report.Warnings()))
	}
}
