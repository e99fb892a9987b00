// Package config loads the process-wide settings the collector and
// transporter need: which table seeds the extraction, which tables are
// excluded, which tables carry generic foreign keys, and the chunk size
// that bounds SQL payload and in-memory ID-set size.
package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultChunkSize bounds both the ID chunks Phase 2a recurses on during
// collection and the per-chunk bulk-copy size during transfer. The
// per-statement IN-list cap is sqltemplate.MaxInListSize.
const DefaultChunkSize = 70000

// DefaultKeyAnchoredDepth is the recursion bound on Phase 2a's sideways
// expansion from key-anchored tables.
const DefaultKeyAnchoredDepth = 1

// Config holds the extraction settings a single collect() run needs.
type Config struct {
	// KeyTableName is the table whose primary key seeds the extraction.
	KeyTableName string
	// ExcludedTables never have their rows transferred; references to
	// them are pruned rather than followed.
	ExcludedTables map[string]bool
	// TablesWithGenericForeignKey participate in Phase 3's content-type
	// closure instead of ordinary typed FK traversal.
	TablesWithGenericForeignKey map[string]bool
	// FullyTransferredTables are copied in their entirety; their
	// NeedTransferPKs is treated as satisfying every FK that targets
	// them. Decided by the operator.
	FullyTransferredTables map[string]bool

	// ChunkSize bounds both the size of each ID chunk Phase 2a recurses
	// on and the per-chunk bulk-copy size (Transporter).
	ChunkSize int
	// KeyAnchoredDepth bounds Phase 2a's sideways recursive expansion.
	KeyAnchoredDepth int
	// PullAllOnEmptyClosure controls the closure walk's fallback of
	// pulling a whole table whose FK targets selected nothing. On by
	// default; disabling it narrows leaf lookup tables at the cost of
	// possibly leaving them empty.
	PullAllOnEmptyClosure bool

	// SourceDSN/DestinationDSN are the two database connection strings.
	SourceDSN      string
	DestinationDSN string
	// SourceMaxConns/DestinationMaxConns size the two connection pools,
	// which double as the collector's concurrency throttle.
	SourceMaxConns      int32
	DestinationMaxConns int32
}

// GetEnvWithDefault returns the value of an environment variable, or a
// default value if it is unset or empty.
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntWithDefault returns an environment variable parsed as int, or
// a default value if unset or unparsable.
func GetEnvIntWithDefault(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitEnvList(value string) map[string]bool {
	result := make(map[string]bool)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result[item] = true
		}
	}
	return result
}

// FromEnv builds a Config from environment variables, applying the
// documented defaults for anything unset. It does not load a .env file
// itself; callers load one (e.g. via godotenv) before calling FromEnv.
func FromEnv() *Config {
	return &Config{
		KeyTableName:                GetEnvWithDefault("DATABASER_KEY_TABLE", ""),
		ExcludedTables:              splitEnvList(GetEnvWithDefault("DATABASER_EXCLUDED_TABLES", "")),
		TablesWithGenericForeignKey: splitEnvList(GetEnvWithDefault("DATABASER_GENERIC_FK_TABLES", "")),
		FullyTransferredTables:      splitEnvList(GetEnvWithDefault("DATABASER_FULL_TRANSFER_TABLES", "")),

		ChunkSize:             GetEnvIntWithDefault("DATABASER_CHUNK_SIZE", DefaultChunkSize),
		KeyAnchoredDepth:      GetEnvIntWithDefault("DATABASER_KEY_ANCHORED_DEPTH", DefaultKeyAnchoredDepth),
		PullAllOnEmptyClosure: GetEnvWithDefault("DATABASER_PULL_ALL_ON_EMPTY_CLOSURE", "true") != "false",

		SourceDSN:           GetEnvWithDefault("DATABASER_SOURCE_DSN", ""),
		DestinationDSN:      GetEnvWithDefault("DATABASER_DESTINATION_DSN", ""),
		SourceMaxConns:      int32(GetEnvIntWithDefault("DATABASER_SOURCE_MAX_CONNS", 10)),
		DestinationMaxConns: int32(GetEnvIntWithDefault("DATABASER_DESTINATION_MAX_CONNS", 10)),
	}
}

// IsExcluded reports whether a table is configured as excluded.
func (c *Config) IsExcluded(table string) bool {
	return c.ExcludedTables[table]
}

// IsGeneric reports whether a table participates in Phase 3.
func (c *Config) IsGeneric(table string) bool {
	return c.TablesWithGenericForeignKey[table]
}

// IsFullyTransferred reports whether a table is copied in its entirety.
func (c *Config) IsFullyTransferred(table string) bool {
	return c.FullyTransferredTables[table]
}
