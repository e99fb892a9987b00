// Package collector drives the referential-closure traversal: given a
// seed set of key-table primary keys, it determines for every table in
// the schema the set of rows that must be copied to the destination.
// It issues read-only queries against the source, plus one read of the
// destination's content-type catalog in Phase 3; no destination writes
// happen here — that is the transporter's job once Collect returns.
package collector

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Ganzgorn/databaser/internal/config"
	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/internal/logger"
	"github.com/Ganzgorn/databaser/internal/pgerr"
	"github.com/Ganzgorn/databaser/internal/sqltemplate"
	"github.com/Ganzgorn/databaser/internal/stats"
)

// Collector owns the schema model and the two connection pools for the
// duration of one Collect() run. It is not reusable across concurrent
// runs against different seed sets — the schema it mutates is shared,
// process-wide state.
type Collector struct {
	schema     *dbschema.Schema
	sourcePool *pgxpool.Pool
	destPool   *pgxpool.Pool
	cfg        *config.Config
	sink       stats.Sink

	// sem bounds the number of source-side queries in flight at once to
	// the source pool's size, so fan-out never queues more work than the
	// pool can actually serve concurrently.
	sem *semaphore.Weighted

	// seed holds the key values Collect was called with, read by Phase
	// 2a's directly-key-anchored tables. Set once before any goroutine
	// launches and never mutated afterward.
	seed []any
}

// New builds a Collector over an already-introspected schema. cfg's
// FullyTransferredTables are applied to the schema's Table.isFullyTransferred
// flag here, once, before collection starts.
func New(schema *dbschema.Schema, sourcePool, destPool *pgxpool.Pool, cfg *config.Config, sink stats.Sink) *Collector {
	if sink == nil {
		sink = stats.NoopSink{}
	}
	for _, t := range schema.AllTables() {
		if cfg.IsFullyTransferred(t.Name) {
			t.SetFullyTransferred(true)
		}
	}

	maxInFlight := cfg.SourceMaxConns
	if maxInFlight <= 0 {
		maxInFlight = 10
	}

	return &Collector{
		schema:     schema,
		sourcePool: sourcePool,
		destPool:   destPool,
		cfg:        cfg,
		sink:       sink,
		sem:        semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Collect runs Phase 1 (seed), Phase 2 (common tables), and Phase 3
// (generic foreign keys) in order. Propagation is fail-fast: the first
// fatal error from any task aborts the whole run.
func (c *Collector) Collect(ctx context.Context, keyValues []any) error {
	c.seed = keyValues

	end := c.sink.Begin(ctx, stats.StageTransferKeyTable)
	c.seedKeyTable(keyValues)
	seedErr := c.seedFullyTransferredTables(ctx)
	end()
	if seedErr != nil {
		return seedErr
	}

	end = c.sink.Begin(ctx, stats.StageCollectCommonTablesRecordsIDs)
	if err := c.prepareKeyAnchoredTables(ctx); err != nil {
		end()
		return err
	}
	if err := c.closeDependencyOrder(ctx); err != nil {
		end()
		return err
	}
	end()

	end = c.sink.Begin(ctx, stats.StageCollectGenericTablesRecordsIDs)
	if err := c.collectGenericTables(ctx); err != nil {
		end()
		return err
	}
	end()

	return nil
}

// fetchColumn runs one statement against the source pool and returns the
// first column of every row — the shape every sqltemplate fetch in this
// package produces.
func (c *Collector) fetchColumn(ctx context.Context, stmt sqltemplate.Statement) ([]any, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	rows, err := c.sourcePool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, pgerr.Classify(err, stmt.SQL)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, pgerr.Classify(err, stmt.SQL)
		}
		out = append(out, vals[0])
	}
	if err := rows.Err(); err != nil {
		return nil, pgerr.Classify(err, stmt.SQL)
	}
	return out, nil
}

// fetchColumnMulti runs every statement in stmts concurrently and merges
// their first columns into one slice — the multi-statement case
// FetchReferencedIDs produces when a restriction's value list exceeds
// MaxInListSize.
func (c *Collector) fetchColumnMulti(ctx context.Context, stmts []sqltemplate.Statement) ([]any, error) {
	if len(stmts) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var all []any
	g, gctx := errgroup.WithContext(ctx)
	for _, stmt := range stmts {
		stmt := stmt
		g.Go(func() error {
			vals, err := c.fetchColumn(gctx, stmt)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, vals...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// referentialAnomaly reports whether a FK column's constraint_table is
// absent from the schema. The anomaly is logged and degrades to "no
// rows"; it is never propagated as an error.
func (c *Collector) referentialAnomaly(tableName string, col *dbschema.Column) (*dbschema.Table, bool) {
	target, ok := c.schema.GetTable(col.ConstraintTable)
	if !ok {
		logger.Get().Warn("referential anomaly: constraint_table not found in schema",
			"table", tableName, "column", col.Name, "constraint_table", col.ConstraintTable)
		return nil, false
	}
	return target, true
}
