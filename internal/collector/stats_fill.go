package collector

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Ganzgorn/databaser/internal/pgerr"
	"github.com/Ganzgorn/databaser/internal/sqltemplate"
)

// FillTableStats runs the informational count/max query against every
// table before collection starts. A count/max query returning NULLs
// (an empty table) leaves the table's default counters in place rather
// than failing.
func (c *Collector) FillTableStats(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range c.schema.AllTables() {
		t := t
		g.Go(func() error {
			if err := c.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer c.sem.Release(1)

			stmt := sqltemplate.Count(t)
			var count int64
			var maxID any
			err := c.sourcePool.QueryRow(gctx, stmt.SQL, stmt.Args...).Scan(&count, &maxID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil
				}
				return pgerr.Classify(err, stmt.SQL)
			}
			t.SetStats(count, maxID)
			return nil
		})
	}
	return g.Wait()
}
