package dbschema

// Column describes one column of a Table.
type Column struct {
	Name string
	// DataType is the Postgres type name as reported by introspection,
	// which reads pg_type.typname (e.g. "int4", "uuid", "int8").
	DataType string
	// ConstraintTable is the table this column's foreign key references,
	// or "" if the column carries no FK.
	ConstraintTable string

	IsPrimaryKey bool
	IsNullable   bool
	IsUnique     bool
}

// IsForeignKey reports whether this column carries a foreign key.
func (c *Column) IsForeignKey() bool {
	return c.ConstraintTable != ""
}
