package collector

import (
	"context"

	"github.com/Ganzgorn/databaser/internal/sqltemplate"
)

// seedKeyTable implements Phase 1: the key table's set of transfer PKs
// becomes the caller-supplied seed set, no I/O involved, and the table
// is marked ready immediately.
func (c *Collector) seedKeyTable(keyValues []any) {
	kt := c.schema.MustGetTable(c.cfg.KeyTableName)
	kt.NeedTransferPKs().Union(keyValues)
	kt.SetReadyForTransferring(true)
}

// seedFullyTransferredTables pulls every primary key of every table
// configured as fully transferred. Phase 2b deliberately skips these
// tables in its ordinary closure fetch (FK columns targeting them are
// treated as unconditionally satisfied), so something still has to
// populate their own sets for the transporter to have rows to copy.
func (c *Collector) seedFullyTransferredTables(ctx context.Context) error {
	for _, t := range c.schema.AllTables() {
		if !t.IsFullyTransferred() || t.Name == c.cfg.KeyTableName {
			continue
		}
		stmt := sqltemplate.FetchAllIDs(t)
		ids, err := c.fetchColumn(ctx, stmt)
		if err != nil {
			return err
		}
		t.NeedTransferPKs().Union(ids)
		t.SetReadyForTransferring(true)
	}
	return nil
}
