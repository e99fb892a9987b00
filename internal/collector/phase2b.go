package collector

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/internal/sqltemplate"
	"github.com/Ganzgorn/databaser/internal/topo"
)

// buildEdges lists the (child, parent) FK edges over every table not
// participating in a generic foreign key — the dependency graph Phase
// 2b sorts over. Self-referencing FKs are excluded: they are handled
// by ordinary FK expansion within a table, not by inter-table
// ordering, and including them would flag every self-referencing table
// as cyclic for no reason.
func (c *Collector) buildEdges() []topo.Edge {
	var edges []topo.Edge
	for _, t := range c.schema.TablesWithoutGenerics(c.cfg.TablesWithGenericForeignKey) {
		if c.cfg.IsExcluded(t.Name) {
			continue
		}
		for _, col := range t.NotSelfFKColumns() {
			if _, ok := c.schema.GetTable(col.ConstraintTable); !ok {
				continue
			}
			if c.cfg.IsExcluded(col.ConstraintTable) {
				continue
			}
			edges = append(edges, topo.Edge{Child: t.Name, Parent: col.ConstraintTable})
		}
	}
	return edges
}

// closeDependencyOrder implements Phase 2b: walk every non-generic
// table sequentially in cyclic-first topological order, closing each
// one's set over its FK targets and the tables that reference it. The
// sequential walk is the one hard ordering constraint in the system —
// each table must observe the final state of its FK targets.
func (c *Collector) closeDependencyOrder(ctx context.Context) error {
	tables := c.schema.TablesWithoutGenerics(c.cfg.TablesWithGenericForeignKey)
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}

	order := topo.ProcessingOrder(names, topo.Sort(c.buildEdges()))
	for _, name := range order {
		if c.cfg.IsExcluded(name) {
			continue
		}
		w, ok := c.schema.GetTable(name)
		if !ok || w.IsReadyForTransferring() {
			continue
		}
		if err := c.closeTable(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// fkColumnsFor selects which FK columns restrict a table's closure
// fetch: prefer the key-anchored FKs, else every non-self FK; a
// non-empty set of unique FK columns overrides either, since a single
// unique FK column alone identifies each row without a Cartesian
// over-selection. Columns targeting excluded tables are pruned
// outright — they never restrict the owning table.
func (c *Collector) fkColumnsFor(w *dbschema.Table) []*dbschema.Column {
	cols := c.schema.FKsWithKeyColumn(w)
	if len(cols) == 0 {
		cols = w.NotSelfFKColumns()
	}
	if unique := w.UniqueForeignKeyColumns(); len(unique) > 0 {
		cols = unique
	}

	kept := cols[:0:0]
	for _, col := range cols {
		if c.cfg.IsExcluded(col.ConstraintTable) {
			continue
		}
		kept = append(kept, col)
	}
	return kept
}

// closeTable runs steps 1-6 of Phase 2b for one table.
func (c *Collector) closeTable(ctx context.Context, w *dbschema.Table) error {
	fkCols := c.fkColumnsFor(w)

	var whereRestrictions []sqltemplate.WhereRestriction
	withFullTransferred := false
	for _, col := range fkCols {
		target, ok := c.referentialAnomaly(w.Name, col)
		if !ok {
			continue
		}
		if target.IsFullyTransferred() {
			withFullTransferred = true
			continue
		}
		vals := target.NeedTransferPKs().Values()
		if len(vals) == 0 {
			continue
		}
		whereRestrictions = append(whereRestrictions, sqltemplate.WhereRestriction{Column: col.Name, Values: vals})
	}

	// A non-empty restriction list means at least one FK target has rows
	// selected, so fetch. An empty list with no fully transferred target
	// means nothing would match anyway — skip the fetch but still run
	// reverse expansion and the fallback below, since those can populate
	// this table independently of its own forward FK targets.
	if len(whereRestrictions) > 0 {
		stmts := sqltemplate.FetchReferencedIDs(sqltemplate.FetchReferencedIDsParams{
			Table:             w,
			Column:            w.PrimaryKey,
			WhereRestrictions: whereRestrictions,
		})
		ids, err := c.fetchColumnMulti(ctx, stmts)
		if err != nil {
			return err
		}
		w.NeedTransferPKs().Union(ids)
	}

	if err := c.reverseExpand(ctx, w); err != nil {
		return err
	}

	// Fallback full pull for a table that still has nothing after the
	// above but does have FK columns whose targets just never resolved
	// to any selected rows — it is acting as a fully-transferred leaf in
	// this slice. A fully-transferred FK target forces the pull
	// regardless of the configuration flag: every parent row is
	// selected, so every row here is reachable.
	if w.NeedTransferPKs().IsEmpty() && len(fkCols) > 0 && (withFullTransferred || c.cfg.PullAllOnEmptyClosure) {
		ids, err := c.fetchColumn(ctx, sqltemplate.FetchAllIDs(w))
		if err != nil {
			return err
		}
		w.NeedTransferPKs().Union(ids)
	}

	w.SetReadyForTransferring(true)
	return nil
}

// reverseExpand pulls, for every table R with a FK pointing at W, the
// rows of W that R's own selected (or, if R is fully transferred, all
// of R's) rows reference but W had not yet pulled directly.
func (c *Collector) reverseExpand(ctx context.Context, w *dbschema.Table) error {
	referencing := c.schema.GetColumnsReferencing(w.Name)
	if len(referencing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for r, cols := range referencing {
		r, cols := r, cols
		if c.cfg.IsExcluded(r.Name) || c.cfg.IsGeneric(r.Name) {
			continue
		}
		g.Go(func() error {
			return c.reverseExpandFrom(gctx, w, r, cols)
		})
	}
	return g.Wait()
}

func (c *Collector) reverseExpandFrom(ctx context.Context, w, r *dbschema.Table, cols []*dbschema.Column) error {
	// Anchor-side tables already materialized their forward references
	// during Phase 2a; re-walking them here for an unrelated table W
	// would be redundant.
	if len(c.schema.FKsWithKeyColumn(r)) > 0 && !w.WithKeyColumn {
		return nil
	}

	for _, col := range cols {
		var ids []any
		var err error
		if r.IsFullyTransferred() {
			ids, err = c.fetchColumn(ctx, sqltemplate.FetchAllColumnValues(r, col.Name))
		} else {
			pks := r.NeedTransferPKs().Values()
			if len(pks) == 0 {
				continue
			}
			stmts := sqltemplate.FetchReferencedIDs(sqltemplate.FetchReferencedIDsParams{
				Table:         r,
				Column:        col.Name,
				PKRestriction: pks,
			})
			ids, err = c.fetchColumnMulti(ctx, stmts)
		}
		if err != nil {
			return err
		}
		w.NeedTransferPKs().Union(ids)
	}
	return nil
}
