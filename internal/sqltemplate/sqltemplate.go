// Package sqltemplate builds the parameterized SELECT/INSERT statements
// the collector and transporter run. Every function here is pure: it
// takes schema objects and ID values and returns SQL text plus
// arguments, without touching a connection, which keeps the traversal
// logic testable without a database.
package sqltemplate

import (
	"fmt"
	"strings"

	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/internal/util"
)

// MaxInListSize is the driver-safe cap on values per single SELECT
// statement.
const MaxInListSize = 30000

// Chunk splits vs into slices of at most size elements.
func Chunk(vs []any, size int) [][]any {
	if size <= 0 || len(vs) <= size {
		if len(vs) == 0 {
			return nil
		}
		return [][]any{vs}
	}
	var out [][]any
	for len(vs) > 0 {
		n := size
		if n > len(vs) {
			n = len(vs)
		}
		out = append(out, vs[:n])
		vs = vs[n:]
	}
	return out
}

// Statement is one SELECT ready to execute: SQL text plus positional
// arguments for pgx's $1, $2, ... placeholders.
type Statement struct {
	SQL  string
	Args []any
}

func placeholders(n, start int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("$%d", start+i)
	}
	return out
}

// Count returns the SQL to count rows and find the maximum primary key
// value of a table.
func Count(t *dbschema.Table) Statement {
	sql := fmt.Sprintf(
		"SELECT count(*), max(%s) FROM %s",
		util.QuoteIdentifier(t.PrimaryKey),
		util.QuoteIdentifier(t.Name),
	)
	return Statement{SQL: sql}
}

// WhereRestriction is one `column IN (values)` conjunct.
type WhereRestriction struct {
	Column string
	Values []any
}

// FetchReferencedIDsParams configures one referenced-ID fetch. Column
// is the column whose distinct non-null values are selected: the
// primary key for a forward fetch, a FK column for the reverse walk
// (which projects the referencing table's FK column under a
// restriction on its own primary key — the direction inversion is
// expressed by the choice of Column, not a separate mode). KeyValues,
// when non-empty, restricts rows by equality against the key column
// named by KeyColumn. PKRestriction, when non-empty, restricts rows to
// table.pk IN (...). WhereRestrictions adds further `col IN (...)`
// conjuncts.
type FetchReferencedIDsParams struct {
	Table  *dbschema.Table
	Column string

	KeyColumn string
	KeyValues []any

	PKRestriction []any

	WhereRestrictions []WhereRestriction
}

// FetchReferencedIDs builds one or more SELECT statements producing the
// distinct non-null values of the configured projection column, each
// statement bounded to MaxInListSize values per IN-list so no single
// statement exceeds a driver-safe payload. A restriction whose value
// list exceeds the cap is partitioned into chunks, one statement per
// chunk; the chunks of a restriction partition its value set, so the
// union of the statements' results is exactly the unpartitioned
// result. With several oversized restrictions the statement list is
// their cross product — in practice at most one restriction is ever
// that large.
func FetchReferencedIDs(p FetchReferencedIDsParams) []Statement {
	// The key-value restriction and the PK restriction both filter on a
	// single column's value set; they never co-occur (seed expansion
	// uses KeyValues, everything downstream uses either PKRestriction
	// or WhereRestrictions).
	restrictions := p.WhereRestrictions
	switch {
	case len(p.KeyValues) > 0:
		restrictions = append([]WhereRestriction{{Column: p.KeyColumn, Values: p.KeyValues}}, restrictions...)
	case len(p.PKRestriction) > 0:
		restrictions = append([]WhereRestriction{{Column: p.Table.PrimaryKey, Values: p.PKRestriction}}, restrictions...)
	}

	var active []WhereRestriction
	for _, wr := range restrictions {
		if len(wr.Values) > 0 {
			active = append(active, wr)
		}
	}
	if len(active) == 0 {
		return nil
	}

	table := util.QuoteIdentifier(p.Table.Name)
	proj := util.QuoteIdentifier(p.Column)

	// combos holds one entry per statement: the chosen chunk of each
	// restriction, built up as the running cross product.
	combos := [][][]any{nil}
	for _, wr := range active {
		chunks := Chunk(wr.Values, MaxInListSize)
		next := make([][][]any, 0, len(combos)*len(chunks))
		for _, combo := range combos {
			for _, chunk := range chunks {
				extended := make([][]any, len(combo), len(combo)+1)
				copy(extended, combo)
				next = append(next, append(extended, chunk))
			}
		}
		combos = next
	}

	statements := make([]Statement, 0, len(combos))
	for _, combo := range combos {
		var conds []string
		var args []any
		argIdx := 1
		for i, chunk := range combo {
			ph := placeholders(len(chunk), argIdx)
			argIdx += len(chunk)
			conds = append(conds, fmt.Sprintf("%s IN (%s)", util.QuoteIdentifier(active[i].Column), strings.Join(ph, ", ")))
			args = append(args, chunk...)
		}
		sql := fmt.Sprintf(
			"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND %s",
			proj, table, proj, strings.Join(conds, " AND "),
		)
		statements = append(statements, Statement{SQL: sql, Args: args})
	}
	return statements
}

// FetchAllIDs builds the SELECT used by Phase 2b step 5's fallback: the
// table is acting as a fully-transferred leaf in the current slice, so
// every primary key is pulled.
func FetchAllIDs(t *dbschema.Table) Statement {
	sql := fmt.Sprintf("SELECT %s FROM %s", util.QuoteIdentifier(t.PrimaryKey), util.QuoteIdentifier(t.Name))
	return Statement{SQL: sql}
}

// FetchAllColumnValues builds the unrestricted SELECT DISTINCT used when
// a table on the other end of a relation is already fully transferred:
// there is no PK set to restrict against, so every non-null value of
// column is pulled directly off the table.
func FetchAllColumnValues(t *dbschema.Table, column string) Statement {
	col := util.QuoteIdentifier(column)
	sql := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL", col, util.QuoteIdentifier(t.Name), col)
	return Statement{SQL: sql}
}

// ContentTypeRow is one row of the content-type catalog.
type ContentTypeRow struct {
	TableName string
	AppLabel  string
	Model     string
	// ContentTypeID is populated only on the source side.
	ContentTypeID any
}

// DestinationContentTypeCatalog returns the SELECT that lists every
// Django-style content type known to the destination, keyed by
// (app_label, model) and naming the table it represents.
func DestinationContentTypeCatalog() Statement {
	return Statement{SQL: `
		SELECT
			lower(ct.app_label || '_' || ct.model) AS table_name,
			ct.app_label,
			ct.model
		FROM django_content_type ct
	`}
}

// SourceContentTypeCatalog returns the SELECT that lists every content
// type known to the source, with its content_type_id.
func SourceContentTypeCatalog() Statement {
	return Statement{SQL: `
		SELECT
			ct.id AS content_type_id,
			ct.app_label,
			ct.model
		FROM django_content_type ct
	`}
}

// GenericFetchParams configures Phase 3 step 2's per-(generic, related)
// table fetch: rows of G whose content_type_id matches R's catalog entry
// and whose object_id is one of R's selected primary keys.
type GenericFetchParams struct {
	Generic          *dbschema.Table
	ObjectIDColumn   string
	ContentTypeID    any
	ContentTypeIDCol string
	RelatedPKs       []any
}

// FetchGenericReferencedIDs builds the chunked SELECT for one
// (generic_table, related_table) pair in Phase 3.
func FetchGenericReferencedIDs(p GenericFetchParams) []Statement {
	if len(p.RelatedPKs) == 0 {
		return nil
	}

	table := util.QuoteIdentifier(p.Generic.Name)
	pk := util.QuoteIdentifier(p.Generic.PrimaryKey)
	objectID := util.QuoteIdentifier(p.ObjectIDColumn)
	contentTypeCol := util.QuoteIdentifier(p.ContentTypeIDCol)

	var statements []Statement
	for _, chunk := range Chunk(p.RelatedPKs, MaxInListSize) {
		argIdx := 1
		ph := placeholders(len(chunk), argIdx+1)
		args := append([]any{p.ContentTypeID}, chunk...)
		sql := fmt.Sprintf(
			"SELECT DISTINCT %s FROM %s WHERE %s = $1 AND %s IN (%s)",
			pk, table, contentTypeCol, objectID, strings.Join(ph, ", "),
		)
		statements = append(statements, Statement{SQL: sql, Args: args})
	}
	return statements
}
