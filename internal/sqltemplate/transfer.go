package sqltemplate

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/internal/util"
)

// Transfer builds the destination-side bulk INSERT ... SELECT that
// pulls rows of one table for one chunk of primary keys from the source
// via dblink, and returns the primary keys actually inserted.
// srcConnStr is a libpq-style connection string the destination passes
// straight to dblink — it must be reachable from the destination's
// network, a deployment precondition this package does not itself
// verify.
func Transfer(t *dbschema.Table, srcConnStr string, pkValues []any) Statement {
	table := util.QuoteIdentifier(t.Name)
	pk := util.QuoteIdentifier(t.PrimaryKey)

	columnNames := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columnNames[i] = util.QuoteIdentifier(c.Name)
	}
	columnList := strings.Join(columnNames, ", ")

	remoteSQL := fmt.Sprintf("SELECT %s FROM %s", columnList, table)
	if len(pkValues) > 0 {
		remoteSQL += fmt.Sprintf(" WHERE %s IN (%s)", pk, inListLiteral(pkValues))
	}

	columnDefs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columnDefs[i] = fmt.Sprintf("%s %s", util.QuoteIdentifier(c.Name), c.DataType)
	}

	sql := fmt.Sprintf(
		`INSERT INTO %s (%s)
SELECT %s FROM dblink(%s, %s) AS src(%s)
ON CONFLICT (%s) DO NOTHING
RETURNING %s`,
		table, columnList,
		columnList,
		pq.QuoteLiteral(srcConnStr), pq.QuoteLiteral(remoteSQL),
		strings.Join(columnDefs, ", "),
		pk,
		pk,
	)

	return Statement{SQL: sql}
}

// inListLiteral renders values as a literal SQL IN-list. dblink's remote
// SQL text cannot carry the destination's own query parameters (it is
// evaluated by the source, over the source connection dblink opens), so
// the primary-key restriction must be inlined as literals rather than
// passed as $n placeholders.
func inListLiteral(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = literal(v)
	}
	return strings.Join(parts, ", ")
}

func literal(v any) string {
	switch val := v.(type) {
	case string:
		return pq.QuoteLiteral(val)
	case fmt.Stringer:
		return pq.QuoteLiteral(val.String())
	default:
		return fmt.Sprintf("%v", val)
	}
}

// EnsureDblinkExtension returns the statement that installs the dblink
// extension on the destination, a one-time prerequisite for Transfer.
func EnsureDblinkExtension() Statement {
	return Statement{SQL: "CREATE EXTENSION IF NOT EXISTS dblink"}
}

// ResetSequence builds the statement that sets a table's primary-key
// sequence to the maximum value now present, the way a fresh bulk load
// must before the destination accepts further application writes.
// Tables whose primary key owns no sequence (non-serial keys) resolve
// to NULL and are skipped by the WHERE clause rather than erroring.
func ResetSequence(t *dbschema.Table) Statement {
	sql := fmt.Sprintf(
		"SELECT setval(seq, COALESCE((SELECT MAX(%s) FROM %s), 1)) FROM pg_get_serial_sequence(%s, %s) AS seq WHERE seq IS NOT NULL",
		util.QuoteIdentifier(t.PrimaryKey),
		util.QuoteIdentifier(t.Name),
		pq.QuoteLiteral(t.Name),
		pq.QuoteLiteral(t.PrimaryKey),
	)
	return Statement{SQL: sql}
}
