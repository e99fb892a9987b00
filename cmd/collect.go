package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ganzgorn/databaser/internal/collector"
	"github.com/Ganzgorn/databaser/internal/config"
	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/internal/logger"
	"github.com/Ganzgorn/databaser/internal/stats"
	"github.com/Ganzgorn/databaser/internal/transporter"
	"github.com/Ganzgorn/databaser/internal/utils"
)

var (
	collectSourceDSN      string
	collectDestinationDSN string
	collectKeyTable       string
	collectKeyValues      string
	collectExcluded       string
	collectGenerics       string
	collectFullTransfer   string
	collectChunkSize      int
	collectSchemaName     string
	collectDblinkConnStr  string
	collectDryRun         bool
)

var CollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Determine and copy the rows reachable from a key set",
	Long: `Collect traverses the source database's foreign-key graph starting
from the given key-table primary keys, decides for every table which
rows must be copied, and then bulk-copies them into the destination
via dblink.

Flags override the corresponding DATABASER_* environment variables.
With --dry-run only the collection runs; per-table row counts are
reported and nothing is written to the destination.`,
	RunE: runCollect,
}

func init() {
	CollectCmd.Flags().StringVar(&collectSourceDSN, "source-dsn", "", "Source database connection string (env: DATABASER_SOURCE_DSN)")
	CollectCmd.Flags().StringVar(&collectDestinationDSN, "destination-dsn", "", "Destination database connection string (env: DATABASER_DESTINATION_DSN)")
	CollectCmd.Flags().StringVar(&collectKeyTable, "key-table", "", "Table whose primary key seeds the extraction (env: DATABASER_KEY_TABLE)")
	CollectCmd.Flags().StringVar(&collectKeyValues, "keys", "", "Comma-separated key values to extract (required)")
	CollectCmd.Flags().StringVar(&collectExcluded, "excluded-tables", "", "Comma-separated tables never transferred")
	CollectCmd.Flags().StringVar(&collectGenerics, "generic-fk-tables", "", "Comma-separated tables carrying a generic (content-type) foreign key")
	CollectCmd.Flags().StringVar(&collectFullTransfer, "full-transfer-tables", "", "Comma-separated tables copied in their entirety")
	CollectCmd.Flags().IntVar(&collectChunkSize, "chunk-size", 0, "IDs per recursion/bulk-copy chunk (default 70000)")
	CollectCmd.Flags().StringVar(&collectSchemaName, "schema", "public", "Postgres schema to introspect")
	CollectCmd.Flags().StringVar(&collectDblinkConnStr, "dblink-source-conn", "", "Connection string the destination's dblink uses to reach the source (defaults to --source-dsn)")
	CollectCmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "Collect only; report per-table counts without transferring")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	applyCollectFlags(cfg)

	if cfg.KeyTableName == "" {
		return fmt.Errorf("key table is required (--key-table or DATABASER_KEY_TABLE)")
	}
	if cfg.SourceDSN == "" {
		return fmt.Errorf("source DSN is required (--source-dsn or DATABASER_SOURCE_DSN)")
	}
	needDest := !collectDryRun || len(cfg.TablesWithGenericForeignKey) > 0
	if needDest && cfg.DestinationDSN == "" {
		return fmt.Errorf("destination DSN is required (--destination-dsn or DATABASER_DESTINATION_DSN)")
	}

	keyValues := parseKeyValues(collectKeyValues)
	if len(keyValues) == 0 {
		return fmt.Errorf("at least one key value is required (--keys)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Get()

	sourcePool, err := utils.NewPoolFromDSN(ctx, cfg.SourceDSN, cfg.SourceMaxConns)
	if err != nil {
		return fmt.Errorf("connecting to source: %w", err)
	}
	defer sourcePool.Close()

	destPool := sourcePool
	if needDest {
		destPool, err = utils.NewPoolFromDSN(ctx, cfg.DestinationDSN, cfg.DestinationMaxConns)
		if err != nil {
			return fmt.Errorf("connecting to destination: %w", err)
		}
		defer destPool.Close()
	}

	schema, err := dbschema.Introspect(ctx, sourcePool, collectSchemaName)
	if err != nil {
		return err
	}
	schema.MarkKeyColumnTables(cfg.KeyTableName)
	if _, ok := schema.GetTable(cfg.KeyTableName); !ok {
		return fmt.Errorf("key table %q not found in schema %q", cfg.KeyTableName, collectSchemaName)
	}

	sink := stats.NewLogSink(log)

	coll := collector.New(schema, sourcePool, destPool, cfg, sink)
	if err := coll.FillTableStats(ctx); err != nil {
		return err
	}
	if err := coll.Collect(ctx, keyValues); err != nil {
		return err
	}

	byName := make(map[string]*dbschema.Table)
	for _, t := range schema.AllTables() {
		byName[t.Name] = t
	}
	for _, name := range utils.SortedKeys(byName) {
		t := byName[name]
		if t.NeedTransferPKs().IsEmpty() {
			continue
		}
		count, _ := t.Stats()
		log.Info("collected table", "table", name, "need_transfer", t.NeedTransferPKs().Len(), "full_count", count)
	}

	if collectDryRun {
		log.Info("dry run, skipping transfer")
		return nil
	}

	srcConnStr := collectDblinkConnStr
	if srcConnStr == "" {
		srcConnStr = cfg.SourceDSN
	}
	trans := transporter.New(schema, sourcePool, destPool, cfg, sink, srcConnStr)
	return trans.Transfer(ctx)
}

func applyCollectFlags(cfg *config.Config) {
	if collectSourceDSN != "" {
		cfg.SourceDSN = collectSourceDSN
	}
	if collectDestinationDSN != "" {
		cfg.DestinationDSN = collectDestinationDSN
	}
	if collectKeyTable != "" {
		cfg.KeyTableName = collectKeyTable
	}
	if collectExcluded != "" {
		cfg.ExcludedTables = splitCommaList(collectExcluded)
	}
	if collectGenerics != "" {
		cfg.TablesWithGenericForeignKey = splitCommaList(collectGenerics)
	}
	if collectFullTransfer != "" {
		cfg.FullyTransferredTables = splitCommaList(collectFullTransfer)
	}
	if collectChunkSize > 0 {
		cfg.ChunkSize = collectChunkSize
	}
}

func splitCommaList(value string) map[string]bool {
	out := make(map[string]bool)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out[item] = true
		}
	}
	return out
}

// parseKeyValues splits the --keys flag, keeping integer keys as int64 so
// they bind to integer primary-key columns without a cast.
func parseKeyValues(raw string) []any {
	var out []any
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if n, err := strconv.ParseInt(item, 10, 64); err == nil {
			out = append(out, n)
		} else {
			out = append(out, item)
		}
	}
	return out
}
