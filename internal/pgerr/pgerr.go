// Package pgerr classifies Postgres driver errors so the collector and
// transporter can decide what to log, what to degrade gracefully, and
// what to re-raise.
package pgerr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind distinguishes the classes of failure a run can hit.
type Kind int

const (
	// KindUnknown covers errors this package did not classify — treated
	// the same as driver-transient by callers.
	KindUnknown Kind = iota
	// KindSchemaMismatch is a missing column/table referenced by a
	// generated template. Fatal.
	KindSchemaMismatch
	// KindQuerySyntax is a source query syntax/type error — almost
	// always a schema-model bug, not a data problem. Fatal.
	KindQuerySyntax
	// KindDriverTransient is a connection reset, cancellation, or other
	// recoverable-at-a-higher-level condition.
	KindDriverTransient
	// KindReferentialAnomaly is a column advertising a constraint_table
	// absent from the introspected schema. Degrades to empty, not fatal.
	KindReferentialAnomaly
	// KindDestinationConflict is a not-null or unique violation during
	// transfer, indicating an incomplete closure upstream. Fatal.
	KindDestinationConflict
)

func (k Kind) String() string {
	switch k {
	case KindSchemaMismatch:
		return "schema mismatch"
	case KindQuerySyntax:
		return "query syntax error"
	case KindDriverTransient:
		return "driver transient error"
	case KindReferentialAnomaly:
		return "referential anomaly"
	case KindDestinationConflict:
		return "destination write conflict"
	default:
		return "unknown"
	}
}

// Error wraps a driver error with its classified Kind and the SQL text
// that produced it, so a failure always surfaces with the failing
// statement.
type Error struct {
	Kind Kind
	SQL  string
	Err  error
}

func (e *Error) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v\nsql: %s", e.Kind, e.Err, e.SQL)
}

func (e *Error) Unwrap() error { return e.Err }

// These are the Postgres error codes that indicate the generated SQL
// itself is wrong rather than the data it reads.
const (
	codeUndefinedColumn   = "42703"
	codeUndefinedTable    = "42P01"
	codeUndefinedFunction = "42883"
	codeSyntaxError       = "42601"
	codeNotNullViolation  = "23502"
	codeUniqueViolation   = "23505"
)

// Classify maps a driver error to its kind and wraps it with the SQL
// text that produced it. A nil err returns nil.
func Classify(err error, sql string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedTable, codeUndefinedColumn:
			return &Error{Kind: KindSchemaMismatch, SQL: sql, Err: err}
		case codeUndefinedFunction, codeSyntaxError:
			return &Error{Kind: KindQuerySyntax, SQL: sql, Err: err}
		case codeNotNullViolation, codeUniqueViolation:
			return &Error{Kind: KindDestinationConflict, SQL: sql, Err: err}
		}
	}

	return &Error{Kind: KindDriverTransient, SQL: sql, Err: err}
}

// IsReferentialAnomaly reports whether a column's advertised
// constraint_table is missing from the schema — not a driver error at
// all, but a data-model gap the caller should log and treat as an
// empty result, never propagate.
func IsReferentialAnomaly(constraintTable string, known func(string) bool) bool {
	return constraintTable != "" && !known(constraintTable)
}
