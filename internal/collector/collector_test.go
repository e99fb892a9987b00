package collector

import (
	"testing"

	"github.com/Ganzgorn/databaser/internal/config"
	"github.com/Ganzgorn/databaser/internal/dbschema"
)

func testConfig() *config.Config {
	return &config.Config{
		KeyTableName:                "org",
		ExcludedTables:              map[string]bool{},
		TablesWithGenericForeignKey: map[string]bool{},
		FullyTransferredTables:      map[string]bool{},
		ChunkSize:                   config.DefaultChunkSize,
		KeyAnchoredDepth:            config.DefaultKeyAnchoredDepth,
		PullAllOnEmptyClosure:       true,
		SourceMaxConns:              4,
	}
}

// chainSchema wires org <- user <- doc, with a side lookup table the
// key column never reaches.
func chainSchema() *dbschema.Schema {
	s := dbschema.NewSchema()

	org := dbschema.NewTable("org", "id")
	org.Columns = []*dbschema.Column{{Name: "id", DataType: "bigint", IsPrimaryKey: true}}
	s.AddTable(org)

	user := dbschema.NewTable("user", "id")
	user.Columns = []*dbschema.Column{
		{Name: "id", DataType: "bigint", IsPrimaryKey: true},
		{Name: "org_id", DataType: "bigint", ConstraintTable: "org"},
		{Name: "dept_id", DataType: "bigint", ConstraintTable: "dept"},
	}
	s.AddTable(user)

	doc := dbschema.NewTable("doc", "id")
	doc.Columns = []*dbschema.Column{
		{Name: "id", DataType: "bigint", IsPrimaryKey: true},
		{Name: "user_id", DataType: "bigint", ConstraintTable: "user"},
	}
	s.AddTable(doc)

	dept := dbschema.NewTable("dept", "id")
	dept.Columns = []*dbschema.Column{{Name: "id", DataType: "bigint", IsPrimaryKey: true}}
	s.AddTable(dept)

	s.BuildReverseIndex()
	s.MarkKeyColumnTables("org")
	return s
}

func TestBuildEdges(t *testing.T) {
	c := New(chainSchema(), nil, nil, testConfig(), nil)

	edges := c.buildEdges()

	type pair struct{ child, parent string }
	got := map[pair]bool{}
	for _, e := range edges {
		got[pair{e.Child, e.Parent}] = true
	}
	for _, want := range []pair{
		{"user", "org"},
		{"user", "dept"},
		{"doc", "user"},
	} {
		if !got[want] {
			t.Errorf("missing edge %v in %v", want, edges)
		}
	}
	if len(edges) != 3 {
		t.Errorf("expected 3 edges, got %v", edges)
	}
}

func TestBuildEdgesPrunesExcluded(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludedTables["dept"] = true
	c := New(chainSchema(), nil, nil, cfg, nil)

	for _, e := range c.buildEdges() {
		if e.Child == "dept" || e.Parent == "dept" {
			t.Errorf("excluded table leaked into the edge list: %v", e)
		}
	}
}

func TestFKColumnsForPrefersKeyColumnFKs(t *testing.T) {
	schema := chainSchema()
	c := New(schema, nil, nil, testConfig(), nil)

	// user has two FKs; only org_id targets a key-column table, so the
	// key-anchored selection wins and dept_id is left out.
	cols := c.fkColumnsFor(schema.MustGetTable("user"))
	if len(cols) != 1 || cols[0].Name != "org_id" {
		t.Errorf("expected [org_id], got %v", columnNames(cols))
	}
}

func TestFKColumnsForUniqueOverride(t *testing.T) {
	schema := chainSchema()
	user := schema.MustGetTable("user")
	user.GetColumnByName("dept_id").IsUnique = true

	c := New(schema, nil, nil, testConfig(), nil)

	// A unique FK replaces, not augments, the other candidates.
	cols := c.fkColumnsFor(user)
	if len(cols) != 1 || cols[0].Name != "dept_id" {
		t.Errorf("expected unique override [dept_id], got %v", columnNames(cols))
	}
}

func TestFKColumnsForPrunesExcludedTargets(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludedTables["user"] = true
	schema := chainSchema()
	c := New(schema, nil, nil, cfg, nil)

	// doc's only FK targets the excluded user table: nothing survives.
	cols := c.fkColumnsFor(schema.MustGetTable("doc"))
	if len(cols) != 0 {
		t.Errorf("excluded target survived pruning: %v", columnNames(cols))
	}
}

func columnNames(cols []*dbschema.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func TestNewAppliesFullyTransferred(t *testing.T) {
	cfg := testConfig()
	cfg.FullyTransferredTables["dept"] = true
	schema := chainSchema()

	New(schema, nil, nil, cfg, nil)

	if !schema.MustGetTable("dept").IsFullyTransferred() {
		t.Error("configured fully-transferred table not marked on the schema")
	}
	if schema.MustGetTable("org").IsFullyTransferred() {
		t.Error("unconfigured table marked fully transferred")
	}
}

func TestCompatibleTypes(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"bigint", "int8", true},
		{"integer", "bigint", true},
		{"uuid", "uuid", true},
		{"text", "varchar", true},
		{"bigint", "uuid", false},
		{"text", "integer", false},
	}
	for _, tc := range cases {
		if got := compatibleTypes(tc.a, tc.b); got != tc.want {
			t.Errorf("compatibleTypes(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
