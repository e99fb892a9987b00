package collector

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/internal/pgerr"
	"github.com/Ganzgorn/databaser/internal/sqltemplate"
)

// Django's generic-foreign-key convention names these two columns
// uniformly across every model that carries one, so they are fixed
// here rather than configured.
const (
	genericObjectIDColumn      = "object_id"
	genericContentTypeIDColumn = "content_type_id"
)

type contentTypeKey struct {
	appLabel string
	model    string
}

// buildContentTypeCatalog intersects the destination's
// (app_label, model) -> table_name map with the source's
// (app_label, model) -> content_type_id map.
func (c *Collector) buildContentTypeCatalog(ctx context.Context) (map[string]any, error) {
	destRows, err := c.fetchDestinationContentTypes(ctx)
	if err != nil {
		return nil, err
	}
	srcRows, err := c.fetchSourceContentTypes(ctx)
	if err != nil {
		return nil, err
	}

	destByKey := make(map[contentTypeKey]string, len(destRows))
	for _, row := range destRows {
		destByKey[contentTypeKey{strings.ToLower(row.AppLabel), strings.ToLower(row.Model)}] = row.TableName
	}

	catalog := make(map[string]any, len(srcRows))
	for _, row := range srcRows {
		key := contentTypeKey{strings.ToLower(row.AppLabel), strings.ToLower(row.Model)}
		if tableName, ok := destByKey[key]; ok {
			catalog[tableName] = row.ContentTypeID
		}
	}
	return catalog, nil
}

func (c *Collector) fetchDestinationContentTypes(ctx context.Context) ([]sqltemplate.ContentTypeRow, error) {
	stmt := sqltemplate.DestinationContentTypeCatalog()
	rows, err := c.destPool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, pgerr.Classify(err, stmt.SQL)
	}
	defer rows.Close()

	var out []sqltemplate.ContentTypeRow
	for rows.Next() {
		var r sqltemplate.ContentTypeRow
		if err := rows.Scan(&r.TableName, &r.AppLabel, &r.Model); err != nil {
			return nil, pgerr.Classify(err, stmt.SQL)
		}
		out = append(out, r)
	}
	return out, pgerr.Classify(rows.Err(), stmt.SQL)
}

func (c *Collector) fetchSourceContentTypes(ctx context.Context) ([]sqltemplate.ContentTypeRow, error) {
	stmt := sqltemplate.SourceContentTypeCatalog()
	rows, err := c.sourcePool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, pgerr.Classify(err, stmt.SQL)
	}
	defer rows.Close()

	var out []sqltemplate.ContentTypeRow
	for rows.Next() {
		var r sqltemplate.ContentTypeRow
		if err := rows.Scan(&r.ContentTypeID, &r.AppLabel, &r.Model); err != nil {
			return nil, pgerr.Classify(err, stmt.SQL)
		}
		out = append(out, r)
	}
	return out, pgerr.Classify(rows.Err(), stmt.SQL)
}

// collectGenericTables implements Phase 3: for every configured generic
// table and every related table in the content-type catalog, in
// parallel, pull the generic table's rows that point at
// already-selected rows of that related table.
func (c *Collector) collectGenericTables(ctx context.Context) error {
	if len(c.cfg.TablesWithGenericForeignKey) == 0 {
		return nil
	}

	catalog, err := c.buildContentTypeCatalog(ctx)
	if err != nil {
		return err
	}

	var generics []*dbschema.Table
	for name := range c.cfg.TablesWithGenericForeignKey {
		if c.cfg.IsExcluded(name) {
			continue
		}
		t, ok := c.schema.GetTable(name)
		if !ok {
			continue
		}
		generics = append(generics, t)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, gen := range generics {
		gen := gen
		for relatedName, contentTypeID := range catalog {
			if c.cfg.IsExcluded(relatedName) || relatedName == gen.Name {
				continue
			}
			related, ok := c.schema.GetTable(relatedName)
			if !ok {
				continue
			}
			related, contentTypeID := related, contentTypeID
			g.Go(func() error {
				return c.collectGenericRelated(gctx, gen, related, contentTypeID)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, gen := range generics {
		gen.SetReadyForTransferring(true)
	}
	return nil
}

// collectGenericRelated implements Phase 3 step 2 for one
// (generic, related) pair.
func (c *Collector) collectGenericRelated(ctx context.Context, gen, related *dbschema.Table, contentTypeID any) error {
	objectIDCol := gen.GetColumnByName(genericObjectIDColumn)
	if objectIDCol == nil {
		return nil
	}
	pkCol := related.GetColumnByName(related.PrimaryKey)
	if pkCol == nil || !compatibleTypes(objectIDCol.DataType, pkCol.DataType) {
		return nil
	}

	relatedPKs := related.NeedTransferPKs().Values()
	if len(relatedPKs) == 0 {
		return nil
	}

	stmts := sqltemplate.FetchGenericReferencedIDs(sqltemplate.GenericFetchParams{
		Generic:          gen,
		ObjectIDColumn:   genericObjectIDColumn,
		ContentTypeID:    contentTypeID,
		ContentTypeIDCol: genericContentTypeIDColumn,
		RelatedPKs:       relatedPKs,
	})
	ids, err := c.fetchColumnMulti(ctx, stmts)
	if err != nil {
		return err
	}
	gen.NeedTransferPKs().Union(ids)
	return nil
}

// compatibleTypes reports whether two Postgres data types belong to the
// same broad family (integer, text, uuid, ...). object_id is usually a
// generic integer/text column rather than a typed FK, so family-level
// compatibility is the right precision for pairing it with a related
// table's primary key.
func compatibleTypes(a, b string) bool {
	return typeFamily(a) == typeFamily(b)
}

func typeFamily(t string) string {
	t = strings.ToLower(t)
	switch {
	case strings.Contains(t, "int"):
		return "int"
	case strings.Contains(t, "uuid"):
		return "uuid"
	case strings.Contains(t, "char") || strings.Contains(t, "text"):
		return "text"
	default:
		return t
	}
}
