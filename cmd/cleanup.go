package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepress/internal/services"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove the scratch directories a build leaves behind",
	Long: `Remove the compiled bundle directory and the dependency shim
directory from the project. The output root is left alone.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := services.NewBuildService(cfg, logger)
	if err != nil {
		return err
	}

	removed, err := svc.Clean(cmd.Context())
	for _, dir := range removed {
		fmt.Fprintln(cmd.OutOrStdout(), "removed", dir)
	}
	return err
}
