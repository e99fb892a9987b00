package dbschema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Introspect builds a Schema by querying pg_catalog for every table,
// column, primary key and foreign key in the given Postgres schema
// (normally "public"). The model is single-schema and single-column-key:
// every table is expected to carry at most one primary-key column, and
// composite foreign keys are ignored.
func Introspect(ctx context.Context, pool *pgxpool.Pool, schemaName string) (*Schema, error) {
	schema := NewSchema()

	if err := queryTablesAndColumns(ctx, pool, schemaName, schema); err != nil {
		return nil, fmt.Errorf("introspecting tables and columns: %w", err)
	}
	if err := queryPrimaryKeys(ctx, pool, schemaName, schema); err != nil {
		return nil, fmt.Errorf("introspecting primary keys: %w", err)
	}
	if err := queryUniqueColumns(ctx, pool, schemaName, schema); err != nil {
		return nil, fmt.Errorf("introspecting unique constraints: %w", err)
	}
	if err := queryForeignKeys(ctx, pool, schemaName, schema); err != nil {
		return nil, fmt.Errorf("introspecting foreign keys: %w", err)
	}

	schema.BuildReverseIndex()
	return schema, nil
}

// queryTablesAndColumns populates Schema.Tables with every base table
// and ordinary column, without key information.
func queryTablesAndColumns(ctx context.Context, pool *pgxpool.Pool, schemaName string, schema *Schema) error {
	const query = `
		SELECT
			c.relname AS table_name,
			a.attname AS column_name,
			t.typname AS data_type,
			NOT a.attnotnull AS is_nullable
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		JOIN pg_type t ON t.oid = a.atttypid
		WHERE c.relkind = 'r'
			AND a.attnum > 0
			AND NOT a.attisdropped
			AND n.nspname = $1
		ORDER BY c.relname, a.attnum
	`

	rows, err := pool.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, dataType string
		var nullable bool
		if err := rows.Scan(&tableName, &colName, &dataType, &nullable); err != nil {
			return err
		}

		tbl, ok := schema.GetTable(tableName)
		if !ok {
			tbl = NewTable(tableName, "")
			schema.AddTable(tbl)
		}
		tbl.Columns = append(tbl.Columns, &Column{
			Name:       colName,
			DataType:   dataType,
			IsNullable: nullable,
		})
	}
	return rows.Err()
}

// queryPrimaryKeys fills in each table's PrimaryKey and marks the
// corresponding Column.IsPrimaryKey.
func queryPrimaryKeys(ctx context.Context, pool *pgxpool.Pool, schemaName string, schema *Schema) error {
	const query = `
		SELECT
			c.relname AS table_name,
			a.attname AS column_name
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN LATERAL unnest(con.conkey) AS u(attnum) ON true
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = u.attnum
		WHERE con.contype = 'p'
			AND n.nspname = $1
		ORDER BY c.relname
	`

	rows, err := pool.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName string
		if err := rows.Scan(&tableName, &colName); err != nil {
			return err
		}

		tbl, ok := schema.GetTable(tableName)
		if !ok {
			continue
		}
		tbl.PrimaryKey = colName
		if c := tbl.GetColumnByName(colName); c != nil {
			c.IsPrimaryKey = true
		}
	}
	return rows.Err()
}

// queryUniqueColumns marks Column.IsUnique for columns covered by a
// single-column UNIQUE constraint — this is what lets
// UniqueForeignKeyColumns identify 1:1 relationships. A unique index
// created without a constraint is not detected.
func queryUniqueColumns(ctx context.Context, pool *pgxpool.Pool, schemaName string, schema *Schema) error {
	const query = `
		SELECT
			c.relname AS table_name,
			a.attname AS column_name
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		WHERE con.contype = 'u'
			AND array_length(con.conkey, 1) = 1
			AND a.attnum = con.conkey[1]
			AND n.nspname = $1
	`

	rows, err := pool.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName string
		if err := rows.Scan(&tableName, &colName); err != nil {
			return err
		}

		tbl, ok := schema.GetTable(tableName)
		if !ok {
			continue
		}
		if c := tbl.GetColumnByName(colName); c != nil {
			c.IsUnique = true
		}
	}
	return rows.Err()
}

// queryForeignKeys fills in ConstraintTable on every single-column
// foreign-key column. Composite foreign keys are skipped; the
// Table/Column model treats keys as single-column.
func queryForeignKeys(ctx context.Context, pool *pgxpool.Pool, schemaName string, schema *Schema) error {
	const query = `
		SELECT
			cc.relname AS child_table,
			ca.attname AS child_column,
			pc.relname AS parent_table
		FROM pg_constraint con
		JOIN pg_class cc ON cc.oid = con.conrelid
		JOIN pg_namespace cn ON cn.oid = cc.relnamespace
		JOIN pg_class pc ON pc.oid = con.confrelid
		JOIN pg_attribute ca ON ca.attrelid = cc.oid AND ca.attnum = con.conkey[1]
		WHERE con.contype = 'f'
			AND array_length(con.conkey, 1) = 1
			AND cn.nspname = $1
	`

	rows, err := pool.Query(ctx, query, schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var childTable, childColumn, parentTable string
		if err := rows.Scan(&childTable, &childColumn, &parentTable); err != nil {
			return err
		}

		tbl, ok := schema.GetTable(childTable)
		if !ok {
			continue
		}
		if c := tbl.GetColumnByName(childColumn); c != nil {
			c.ConstraintTable = parentTable
		}
	}
	return rows.Err()
}
