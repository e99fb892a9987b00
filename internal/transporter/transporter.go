// Package transporter performs the bulk copy once the collector has
// decided which primary keys each table needs: chunk each table's
// final ID set and execute the destination-side dblink transfer SQL
// per chunk.
package transporter

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/Ganzgorn/databaser/internal/config"
	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/internal/logger"
	"github.com/Ganzgorn/databaser/internal/pgerr"
	"github.com/Ganzgorn/databaser/internal/sqltemplate"
	"github.com/Ganzgorn/databaser/internal/stats"
)

// Transporter copies every table's selected primary keys from the
// source to the destination via dblink, then resynchronizes sequences.
// Assumes the destination either defers FK constraint checking for the
// transaction or has constraint triggers disabled for the load —
// different tables intentionally run in parallel here with no
// dependency ordering, so the destination's own constraint enforcement
// mode, not this package, is what a caller must arrange.
type Transporter struct {
	schema     *dbschema.Schema
	sourcePool *pgxpool.Pool
	destPool   *pgxpool.Pool
	cfg        *config.Config
	sink       stats.Sink

	// srcConnStr is the libpq connection string the destination's dblink
	// calls use to reach the source — must be resolvable from the
	// destination's own network.
	srcConnStr string
}

// New builds a Transporter. srcConnStr is passed straight to dblink by
// the destination, so it must name a host reachable from there, which
// may differ from sourcePool's own connection parameters (e.g. behind a
// different DNS name or bastion).
func New(schema *dbschema.Schema, sourcePool, destPool *pgxpool.Pool, cfg *config.Config, sink stats.Sink, srcConnStr string) *Transporter {
	if sink == nil {
		sink = stats.NoopSink{}
	}
	return &Transporter{
		schema:     schema,
		sourcePool: sourcePool,
		destPool:   destPool,
		cfg:        cfg,
		sink:       sink,
		srcConnStr: srcConnStr,
	}
}

// Transfer runs the bulk copy for every table with a non-empty
// need_transfer_pks, then resets each transferred table's primary-key
// sequence.
func (t *Transporter) Transfer(ctx context.Context) error {
	if err := t.ensureDblink(ctx); err != nil {
		return err
	}

	end := t.sink.Begin(ctx, stats.StageTransferCommonTables)
	err := t.transferAll(ctx)
	end()
	if err != nil {
		return err
	}

	end = t.sink.Begin(ctx, stats.StageTransferGenericTables)
	err = t.updateSequences(ctx)
	end()
	return err
}

func (t *Transporter) ensureDblink(ctx context.Context) error {
	stmt := sqltemplate.EnsureDblinkExtension()
	_, err := t.destPool.Exec(ctx, stmt.SQL, stmt.Args...)
	return pgerr.Classify(err, stmt.SQL)
}

// transferAll copies every table with rows to transfer, one goroutine
// per table; within a table, chunks are transferred serially — their
// SQL payloads are large, so there is no benefit to overlapping them
// against the same destination table.
func (t *Transporter) transferAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, table := range t.schema.AllTables() {
		table := table
		if table.NeedTransferPKs().IsEmpty() || t.cfg.IsExcluded(table.Name) {
			continue
		}
		g.Go(func() error {
			return t.transferTable(gctx, table)
		})
	}
	return g.Wait()
}

func (t *Transporter) transferTable(ctx context.Context, table *dbschema.Table) error {
	logger.Get().Info("start transferring table", "table", table.Name, "need_to_import", table.NeedTransferPKs().Len())

	for _, chunk := range table.NeedTransferPKs().Chunks(t.cfg.ChunkSize) {
		if err := t.transferChunk(ctx, table, chunk); err != nil {
			return err
		}
	}

	logger.Get().Info("finished transferring table", "table", table.Name)
	return nil
}

func (t *Transporter) transferChunk(ctx context.Context, table *dbschema.Table, chunk []any) error {
	stmt := sqltemplate.Transfer(table, t.srcConnStr, chunk)

	rows, err := t.destPool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return pgerr.Classify(err, stmt.SQL)
	}
	defer rows.Close()

	for rows.Next() {
		if _, err := rows.Values(); err != nil {
			return pgerr.Classify(err, stmt.SQL)
		}
	}
	return pgerr.Classify(rows.Err(), stmt.SQL)
}

// updateSequences resynchronizes every transferred table's primary-key
// sequence to the maximum value now present in the destination, the
// way a fresh bulk load must before the destination accepts further
// application writes.
func (t *Transporter) updateSequences(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, table := range t.schema.AllTables() {
		table := table
		if table.NeedTransferPKs().IsEmpty() || t.cfg.IsExcluded(table.Name) {
			continue
		}
		g.Go(func() error {
			stmt := sqltemplate.ResetSequence(table)
			_, err := t.destPool.Exec(gctx, stmt.SQL, stmt.Args...)
			return pgerr.Classify(err, stmt.SQL)
		})
	}
	return g.Wait()
}
