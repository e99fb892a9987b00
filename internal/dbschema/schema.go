package dbschema

import (
	"fmt"
	"sync"
)

// Schema is the in-memory model of the source database's table graph,
// built once by introspection and then read (and its per-table
// NeedTransferPKs written) concurrently for the rest of the run.
type Schema struct {
	mu     sync.RWMutex
	Tables map[string]*Table
}

// NewSchema creates an empty Schema.
func NewSchema() *Schema {
	return &Schema{Tables: make(map[string]*Table)}
}

// AddTable registers a table, replacing any existing entry of the same
// name.
func (s *Schema) AddTable(t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tables[t.Name] = t
}

// GetTable looks up a table by name.
func (s *Schema) GetTable(name string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.Tables[name]
	return t, ok
}

// MustGetTable looks up a table by name, panicking if absent. Used only
// where the caller has already validated the name came from
// introspection of this same schema — an absent table there is a
// programmer error, not a runtime condition.
func (s *Schema) MustGetTable(name string) *Table {
	t, ok := s.GetTable(name)
	if !ok {
		panic(fmt.Sprintf("dbschema: table %q not found", name))
	}
	return t
}

// AllTables returns every table, in no particular order.
func (s *Schema) AllTables() []*Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Table, 0, len(s.Tables))
	for _, t := range s.Tables {
		out = append(out, t)
	}
	return out
}

// TablesWithKeyColumn returns every table with WithKeyColumn set — the
// set the collector expands ahead of the general closure.
func (s *Schema) TablesWithKeyColumn() []*Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Table
	for _, t := range s.Tables {
		if t.WithKeyColumn {
			out = append(out, t)
		}
	}
	return out
}

// TablesWithoutGenerics returns every table not configured as carrying
// a generic (Django-style content-type) foreign key — the set the
// ordinary closure walk is responsible for.
func (s *Schema) TablesWithoutGenerics(genericTables map[string]bool) []*Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Table
	for name, t := range s.Tables {
		if !genericTables[name] {
			out = append(out, t)
		}
	}
	return out
}

// FKsWithKeyColumn returns, for the given table, its foreign-key columns
// that point at a table carrying the key column (i.e. the key table
// itself, or a table with a direct foreign key to it).
func (s *Schema) FKsWithKeyColumn(t *Table) []*Column {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Column
	for _, c := range t.Columns {
		if !c.IsForeignKey() {
			continue
		}
		target, ok := s.Tables[c.ConstraintTable]
		if ok && target.WithKeyColumn {
			out = append(out, c)
		}
	}
	return out
}

// GetColumnsReferencing returns every (table, column) pair across the
// whole schema whose foreign key targets the given table — i.e. the
// reverse edges the dependency-closure walk fans out over.
func (s *Schema) GetColumnsReferencing(tableName string) map[*Table][]*Column {
	target, ok := s.GetTable(tableName)
	if !ok {
		return nil
	}

	out := make(map[*Table][]*Column)
	for referencingName, cols := range target.ReverseFKColumns() {
		referencing, ok := s.GetTable(referencingName)
		if !ok {
			continue
		}
		out[referencing] = cols
	}
	return out
}

// BuildReverseIndex populates every table's reverse-FK index from the
// forward FK columns already attached to each table's Columns. Called
// once after introspection loads all tables and their forward columns.
func (s *Schema) BuildReverseIndex() {
	for _, t := range s.AllTables() {
		for _, c := range t.Columns {
			if !c.IsForeignKey() {
				continue
			}
			target, ok := s.GetTable(c.ConstraintTable)
			if !ok {
				continue
			}
			target.addReverseFK(t.Name, c)
		}
	}
}

// MarkKeyColumnTables marks WithKeyColumn on the key table itself and
// on every table with a direct foreign key to it. Tables reaching the
// key table only through intermediate tables are deliberately not
// marked — they are resolved by the dependency-ordered closure walk,
// which is the one place the unique-FK override and multi-column
// key-anchored restrictions apply.
func (s *Schema) MarkKeyColumnTables(keyTable string) {
	kt, ok := s.GetTable(keyTable)
	if !ok {
		return
	}
	kt.WithKeyColumn = true

	for _, t := range s.AllTables() {
		if t.Name == keyTable {
			continue
		}
		for _, c := range t.Columns {
			if c.IsForeignKey() && c.ConstraintTable == keyTable {
				t.WithKeyColumn = true
				t.KeyColumnName = c.Name
				break
			}
		}
	}
}
