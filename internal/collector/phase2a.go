package collector

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/internal/sqltemplate"
)

// prepareKeyAnchoredTables implements Phase 2a: every table with a key
// column is expanded in parallel against the seed set, then recursively
// prepared one bounded-depth step sideways. Tables reaching the key
// table only through intermediates carry no key column and are left to
// the dependency-ordered closure.
func (c *Collector) prepareKeyAnchoredTables(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range c.schema.TablesWithKeyColumn() {
		t := t
		if t.Name == c.cfg.KeyTableName || c.cfg.IsExcluded(t.Name) {
			continue
		}
		g.Go(func() error {
			return c.prepareKeyAnchoredTable(gctx, t)
		})
	}
	return g.Wait()
}

// prepareKeyAnchoredTable pulls every primary key of t whose key column
// matches a seed value, then recursively prepares t chunk by chunk.
func (c *Collector) prepareKeyAnchoredTable(ctx context.Context, t *dbschema.Table) error {
	if t.KeyColumnName == "" {
		return nil
	}

	stmts := sqltemplate.FetchReferencedIDs(sqltemplate.FetchReferencedIDsParams{
		Table:     t,
		Column:    t.PrimaryKey,
		KeyColumn: t.KeyColumnName,
		KeyValues: c.seed,
	})
	ids, err := c.fetchColumnMulti(ctx, stmts)
	if err != nil {
		return err
	}

	added := t.NeedTransferPKs().Union(ids)
	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range sqltemplate.Chunk(added, c.cfg.ChunkSize) {
		chunk := chunk
		g.Go(func() error {
			return c.recursivelyPrepareTable(gctx, t, chunk, c.cfg.KeyAnchoredDepth, map[string]bool{t.Name: true})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	t.SetReadyForTransferring(true)
	return nil
}

// recursivelyPrepareTable expands sideways from table U restricted to
// one chunk of its own primary keys: follow each non-self forward FK
// column into its target V (skipping V already on the stack, or itself
// key-anchored — those get their own top-level Phase 2a slot), add the
// newly discovered IDs to V's set, and recurse into V with depth
// decremented, stopping at zero. The stack prevents infinite recursion
// on cycles; the depth bound exists purely to cap sideways fan-out,
// not for correctness — Phase 2b's dependency-ordered closure finishes
// the job for anything this step doesn't reach.
func (c *Collector) recursivelyPrepareTable(ctx context.Context, u *dbschema.Table, chunk []any, depth int, stack map[string]bool) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, col := range u.NotSelfFKColumns() {
		col := col
		v, ok := c.referentialAnomaly(u.Name, col)
		if !ok {
			continue
		}
		if stack[v.Name] || v.WithKeyColumn || c.cfg.IsExcluded(v.Name) {
			continue
		}

		g.Go(func() error {
			stmts := sqltemplate.FetchReferencedIDs(sqltemplate.FetchReferencedIDsParams{
				Table:         u,
				Column:        col.Name,
				PKRestriction: chunk,
			})
			s, err := c.fetchColumnMulti(gctx, stmts)
			if err != nil {
				return err
			}

			delta := v.NeedTransferPKs().Union(s)
			if len(delta) == 0 {
				return nil
			}

			nextDepth := depth - 1
			if nextDepth <= 0 {
				return nil
			}

			nextStack := make(map[string]bool, len(stack)+1)
			for k := range stack {
				nextStack[k] = true
			}
			nextStack[v.Name] = true

			sub, subCtx := errgroup.WithContext(gctx)
			for _, dc := range sqltemplate.Chunk(delta, c.cfg.ChunkSize) {
				dc := dc
				sub.Go(func() error {
					return c.recursivelyPrepareTable(subCtx, v, dc, nextDepth, nextStack)
				})
			}
			return sub.Wait()
		})
	}
	return g.Wait()
}
