package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Ganzgorn/databaser/internal/logger"
	"github.com/Ganzgorn/databaser/internal/version"
)

var Debug bool

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var RootCmd = &cobra.Command{
	Use:   "databaser",
	Short: "Consistent partial extraction of a PostgreSQL database",
	Long: fmt.Sprintf(`databaser copies, from a source PostgreSQL database into an empty
destination database of the same schema, exactly the rows reachable
from a set of key-table primary keys through the schema's foreign-key
graph.

Version: %s@%s %s %s

Commands:
  collect   Determine and copy the rows reachable from a key set
  version   Show version information

Use "databaser [command] --help" for more information about a command.`,
		version.App(), GitCommit, platform(), BuildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.AddCommand(CollectCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	level := slog.LevelInfo
	if Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger.SetGlobal(slog.New(handler), Debug)
}

// platform returns the OS/architecture combination
func platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
