package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepress/internal/version"
)

var (
	versionFormat outputFormat
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for sitepress: the version, the git
commit, the build time, the Go version and the target platform.

Examples:
  sitepress version                 # Detailed version info
  sitepress version --short         # Version only
  sitepress version --format json   # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	addFormatFlag(versionCmd, &versionFormat)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Get()
	if versionFormat == formatText {
		if versionShort {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Short())
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "sitepress\n%s\n", info)
		return err
	}
	return writeFormatted(cmd.OutOrStdout(), versionFormat, info)
}
