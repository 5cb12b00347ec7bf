package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepress/internal/services"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site once",
	Long: `Build the site into the output directory.

The build resets the output root, moves the compiled bundles into the new
versioned asset directory, renders every page, compiles stylesheets,
bundles web dependencies and copies passthrough files. With atomic output
(the default) a failed build leaves the previous site untouched.

Examples:
  sitepress build                       # Build into ./build
  sitepress build --format json         # Print the build report as JSON
  sitepress build --on-error continue   # Skip broken stylesheets and packages
  sitepress build --concurrency 1       # Process one item at a time`,
	RunE: runBuild,
}

var buildFormat outputFormat

func init() {
	rootCmd.AddCommand(buildCmd)

	addFormatFlag(buildCmd, &buildFormat)
	buildCmd.Flags().Int("concurrency", 0, "Maximum parallel items per stage (0 uses every CPU)")
	buildCmd.Flags().Bool("minify", false, "Minify dependency bundles")
	buildCmd.Flags().String("metrics-textfile", "", "Write Prometheus metrics to this file")

	_ = viper.BindPFlag("build.concurrency", buildCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("deps.minify", buildCmd.Flags().Lookup("minify"))
	_ = viper.BindPFlag("metrics.textfile", buildCmd.Flags().Lookup("metrics-textfile"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := services.NewBuildService(cfg, logger)
	if err != nil {
		return err
	}

	report, buildErr := svc.Build(cmd.Context())
	if report != nil {
		if err := writeFormatted(cmd.OutOrStdout(), buildFormat, report); err != nil {
			return err
		}
	}
	return buildErr
}
