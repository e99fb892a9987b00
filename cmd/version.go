package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ganzgorn/databaser/internal/version"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version number of databaser",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("databaser v%s@%s %s %s\n", version.App(), GitCommit, platform(), BuildDate)
	},
}
