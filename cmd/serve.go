package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepress/internal/services"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the site and rebuild on change",
	Long: `Start a development server for the output directory. Sources are
watched as in "sitepress watch"; after every build connected browsers
reload, or show an overlay describing the failure.

Examples:
  sitepress serve                       # Serve on localhost:8080
  sitepress serve --port 3000           # Serve on a different port
  sitepress serve --no-live-reload      # Plain static serving`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("host", "H", "localhost", "Host to bind to")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().Bool("no-live-reload", false, "Do not inject the live reload script")

	_ = viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if off, _ := cmd.Flags().GetBool("no-live-reload"); off {
		cfg.Serve.LiveReload = false
	}
	keepCompiled(cfg, logger)

	svc, err := services.NewBuildService(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return services.NewServeService(cfg, svc, logger).Serve(ctx, printSummary(cmd.OutOrStdout()))
}
