package dbschema

import (
	"testing"
)

// buildTestSchema wires org <- user <- doc plus a self-referencing
// category table, the shape most collector walks exercise.
func buildTestSchema() *Schema {
	s := NewSchema()

	org := NewTable("org", "id")
	org.Columns = []*Column{
		{Name: "id", DataType: "bigint", IsPrimaryKey: true},
	}
	s.AddTable(org)

	user := NewTable("user", "id")
	user.Columns = []*Column{
		{Name: "id", DataType: "bigint", IsPrimaryKey: true},
		{Name: "org_id", DataType: "bigint", ConstraintTable: "org"},
	}
	s.AddTable(user)

	doc := NewTable("doc", "id")
	doc.Columns = []*Column{
		{Name: "id", DataType: "bigint", IsPrimaryKey: true},
		{Name: "user_id", DataType: "bigint", ConstraintTable: "user"},
		{Name: "reviewer_id", DataType: "bigint", ConstraintTable: "user", IsUnique: true},
	}
	s.AddTable(doc)

	category := NewTable("category", "id")
	category.Columns = []*Column{
		{Name: "id", DataType: "bigint", IsPrimaryKey: true},
		{Name: "parent_id", DataType: "bigint", ConstraintTable: "category"},
	}
	s.AddTable(category)

	s.BuildReverseIndex()
	return s
}

func TestNotSelfFKColumns(t *testing.T) {
	s := buildTestSchema()

	category := s.MustGetTable("category")
	if cols := category.NotSelfFKColumns(); len(cols) != 0 {
		t.Errorf("self FK should be excluded, got %v", cols)
	}
	if !category.HasSelfFK() {
		t.Error("category should report a self FK")
	}

	doc := s.MustGetTable("doc")
	if cols := doc.NotSelfFKColumns(); len(cols) != 2 {
		t.Errorf("doc should have two outgoing FKs, got %d", len(cols))
	}
}

func TestUniqueForeignKeyColumns(t *testing.T) {
	s := buildTestSchema()

	doc := s.MustGetTable("doc")
	unique := doc.UniqueForeignKeyColumns()
	if len(unique) != 1 || unique[0].Name != "reviewer_id" {
		t.Errorf("unique FK columns = %v, want [reviewer_id]", unique)
	}

	user := s.MustGetTable("user")
	if cols := user.UniqueForeignKeyColumns(); len(cols) != 0 {
		t.Errorf("user has no unique FKs, got %v", cols)
	}
}

func TestReverseIndex(t *testing.T) {
	s := buildTestSchema()

	user := s.MustGetTable("user")
	referencing := s.GetColumnsReferencing("user")

	if len(referencing) != 1 {
		t.Fatalf("expected one referencing table, got %d", len(referencing))
	}
	for table, cols := range referencing {
		if table.Name != "doc" {
			t.Errorf("referencing table = %s, want doc", table.Name)
		}
		if len(cols) != 2 {
			t.Errorf("doc points at user through 2 columns, got %d", len(cols))
		}
	}

	if got := user.ReverseFKColumns(); len(got["doc"]) != 2 {
		t.Errorf("reverse FK index missing doc columns: %v", got)
	}
}

func TestMarkKeyColumnTablesDirectOnly(t *testing.T) {
	s := buildTestSchema()
	s.MarkKeyColumnTables("org")

	for _, name := range []string{"org", "user"} {
		if !s.MustGetTable(name).WithKeyColumn {
			t.Errorf("%s should carry the key column", name)
		}
	}
	// doc reaches org only through user: it is resolved by the closure
	// walk, not by key anchoring.
	if s.MustGetTable("doc").WithKeyColumn {
		t.Error("doc has no direct FK to the key table")
	}
	if s.MustGetTable("category").WithKeyColumn {
		t.Error("category has no path to the key table")
	}

	if got := s.MustGetTable("user").KeyColumnName; got != "org_id" {
		t.Errorf("user key column = %q, want org_id", got)
	}
	if got := s.MustGetTable("org").KeyColumnName; got != "" {
		t.Errorf("key table itself has no key column name, got %q", got)
	}
}

func TestTablesWithKeyColumn(t *testing.T) {
	s := buildTestSchema()
	s.MarkKeyColumnTables("org")

	names := map[string]bool{}
	for _, tbl := range s.TablesWithKeyColumn() {
		names[tbl.Name] = true
	}
	if len(names) != 2 || !names["org"] || !names["user"] {
		t.Errorf("tables with key column = %v", names)
	}
}

func TestFKsWithKeyColumn(t *testing.T) {
	s := buildTestSchema()
	s.MarkKeyColumnTables("org")

	doc := s.MustGetTable("doc")
	cols := s.FKsWithKeyColumn(doc)
	if len(cols) != 2 {
		t.Errorf("both doc FKs target key-column tables, got %d", len(cols))
	}

	category := s.MustGetTable("category")
	if cols := s.FKsWithKeyColumn(category); len(cols) != 0 {
		t.Errorf("category FKs target no key-column table, got %v", cols)
	}
}

func TestTablesWithoutGenerics(t *testing.T) {
	s := buildTestSchema()

	tables := s.TablesWithoutGenerics(map[string]bool{"doc": true})
	for _, tbl := range tables {
		if tbl.Name == "doc" {
			t.Error("generic table leaked into the non-generic partition")
		}
	}
	if len(tables) != 3 {
		t.Errorf("expected 3 non-generic tables, got %d", len(tables))
	}
}

func TestMustGetTablePanics(t *testing.T) {
	s := buildTestSchema()
	defer func() {
		if recover() == nil {
			t.Error("MustGetTable should panic on a missing table")
		}
	}()
	s.MustGetTable("missing")
}

func TestReadyForTransferring(t *testing.T) {
	tbl := NewTable("org", "id")
	if tbl.IsReadyForTransferring() {
		t.Error("new table should not be ready")
	}
	tbl.SetReadyForTransferring(true)
	if !tbl.IsReadyForTransferring() {
		t.Error("table should be ready after marking")
	}
}
