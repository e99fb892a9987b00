package dbschema

import "sync"

// Table describes one table of the source schema, plus the mutable
// bookkeeping the collector accumulates against it while it runs.
type Table struct {
	Name       string
	PrimaryKey string
	Columns    []*Column

	// WithKeyColumn is true when one of Columns is a foreign key to the
	// configured key table, or the table IS the key table. Tables with
	// a key column are discovered ahead of the general dependency
	// closure.
	WithKeyColumn bool

	// KeyColumnName is the name of the FK column that made WithKeyColumn
	// true, i.e. the column pointing at the key table. Empty when this
	// table IS the key table itself.
	KeyColumnName string

	// mu guards everything below: these fields are written concurrently
	// from the fan-out goroutines every phase spawns.
	mu sync.RWMutex

	// reverseFKs indexes, by referencing table name, the columns in
	// OTHER tables that point at this table's primary key. Populated
	// once by Schema.BuildReverseIndex after introspection.
	reverseFKs map[string][]*Column

	// NeedTransferPKs accumulates every primary-key value of this table
	// that the closure has determined must be transferred. NewTable
	// creates it; the accessor creates it on first use for a Table built
	// any other way.
	needTransferPKs *PKSet

	// isReadyForTransferring is set once this table's entry in the
	// dependency closure has been fully resolved: every table it
	// depends on has itself already been resolved, so its
	// NeedTransferPKs will not grow further.
	isReadyForTransferring bool

	// isFullyTransferred marks tables configured for full (unfiltered)
	// copy; FK columns targeting them are treated as always-satisfied.
	isFullyTransferred bool

	// fullCount and maxID hold the informational row-count / max primary
	// key gathered before collection.
	fullCount int64
	maxID     any
}

// NewTable creates an empty Table ready for introspection to populate.
func NewTable(name, primaryKey string) *Table {
	return &Table{
		Name:            name,
		PrimaryKey:      primaryKey,
		reverseFKs:      make(map[string][]*Column),
		needTransferPKs: NewPKSet(),
	}
}

// GetColumnByName returns the column with the given name, or nil.
func (t *Table) GetColumnByName(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// NotSelfFKColumns returns this table's foreign-key columns that do not
// reference the table itself — self-references carry no inter-table
// ordering constraint and are left out of the forward-expansion walk.
func (t *Table) NotSelfFKColumns() []*Column {
	var out []*Column
	for _, c := range t.Columns {
		if c.IsForeignKey() && c.ConstraintTable != t.Name {
			out = append(out, c)
		}
	}
	return out
}

// UniqueForeignKeyColumns returns the foreign-key columns that also
// carry a uniqueness constraint — a 1:1 relationship, where a single
// column already identifies each row.
func (t *Table) UniqueForeignKeyColumns() []*Column {
	var out []*Column
	for _, c := range t.Columns {
		if c.IsForeignKey() && c.IsUnique {
			out = append(out, c)
		}
	}
	return out
}

// HasSelfFK reports whether any column references this table's own
// primary key.
func (t *Table) HasSelfFK() bool {
	for _, c := range t.Columns {
		if c.IsForeignKey() && c.ConstraintTable == t.Name {
			return true
		}
	}
	return false
}

// ReverseFKColumns returns the columns (across the whole schema) that
// reference this table, indexed by the referencing table's name.
func (t *Table) ReverseFKColumns() map[string][]*Column {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string][]*Column, len(t.reverseFKs))
	for k, v := range t.reverseFKs {
		out[k] = v
	}
	return out
}

// addReverseFK registers that referencingTable.column points at this
// table. Called once per FK during Schema construction.
func (t *Table) addReverseFK(referencingTable string, column *Column) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reverseFKs[referencingTable] = append(t.reverseFKs[referencingTable], column)
}

// NeedTransferPKs returns the set of primary keys this table must
// contribute to the transfer. Callers may mutate it directly; the set
// itself is already concurrency-safe.
func (t *Table) NeedTransferPKs() *PKSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.needTransferPKs == nil {
		t.needTransferPKs = NewPKSet()
	}
	return t.needTransferPKs
}

// IsReadyForTransferring reports whether the collector has finished
// resolving this table's set (in Phase 1, 2a, 2b or 3, whichever handled
// the table).
func (t *Table) IsReadyForTransferring() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isReadyForTransferring
}

// SetReadyForTransferring marks this table resolved.
func (t *Table) SetReadyForTransferring(ready bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isReadyForTransferring = ready
}

// IsFullyTransferred reports whether this table is configured for an
// unfiltered full copy.
func (t *Table) IsFullyTransferred() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isFullyTransferred
}

// SetFullyTransferred marks a table as fully (unconditionally) copied.
func (t *Table) SetFullyTransferred(full bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isFullyTransferred = full
}

// Stats reports the informational row count and max primary key value
// gathered before collection.
func (t *Table) Stats() (count int64, maxID any) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fullCount, t.maxID
}

// SetStats records the informational row count and max primary key.
func (t *Table) SetStats(count int64, maxID any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fullCount = count
	t.maxID = maxID
}
