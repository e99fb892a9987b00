package transporter

import (
	"context"
	"sort"
	"testing"

	"github.com/Ganzgorn/databaser/internal/config"
	"github.com/Ganzgorn/databaser/internal/dbschema"
	"github.com/Ganzgorn/databaser/testutil"
)

func TestTransferCopiesSelectedRows(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	pair := testutil.StartPostgresPair(ctx, t)
	defer pair.Terminate(ctx, t)

	testutil.MustExec(ctx, t, pair.Source,
		"CREATE TABLE org (id bigserial PRIMARY KEY, name text)",
		"CREATE TABLE account (id bigserial PRIMARY KEY, org_id bigint REFERENCES org (id), email text)",
		"INSERT INTO org (id, name) VALUES (1, 'one'), (2, 'two'), (3, 'three')",
		"INSERT INTO account (id, org_id, email) VALUES (10, 1, 'a@one'), (11, 1, 'b@one'), (12, 2, 'c@two')",
	)
	// Destination carries the same shape, empty.
	testutil.MustExec(ctx, t, pair.Dest,
		"CREATE TABLE org (id bigserial PRIMARY KEY, name text)",
		"CREATE TABLE account (id bigserial PRIMARY KEY, org_id bigint REFERENCES org (id), email text)",
	)

	schema, err := dbschema.Introspect(ctx, pair.Source, "public")
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	schema.MustGetTable("org").NeedTransferPKs().Union([]any{int64(1), int64(2)})
	schema.MustGetTable("account").NeedTransferPKs().Union([]any{int64(10), int64(11)})

	cfg := &config.Config{
		ExcludedTables: map[string]bool{},
		ChunkSize:      config.DefaultChunkSize,
	}
	trans := New(schema, pair.Source, pair.Dest, cfg, nil, pair.DblinkSourceConn)
	if err := trans.Transfer(ctx); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := destPKs(ctx, t, pair, "org"); !equalInt64s(got, []int64{1, 2}) {
		t.Errorf("dest org ids = %v, want [1 2]", got)
	}
	if got := destPKs(ctx, t, pair, "account"); !equalInt64s(got, []int64{10, 11}) {
		t.Errorf("dest account ids = %v, want [10 11]", got)
	}

	// Sequences must be past the copied maximum so fresh inserts do not
	// collide.
	var next int64
	if err := pair.Dest.QueryRow(ctx, "SELECT nextval('org_id_seq')").Scan(&next); err != nil {
		t.Fatalf("nextval: %v", err)
	}
	if next <= 2 {
		t.Errorf("org sequence not advanced, nextval = %d", next)
	}
}

func TestTransferChunked(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	pair := testutil.StartPostgresPair(ctx, t)
	defer pair.Terminate(ctx, t)

	testutil.MustExec(ctx, t, pair.Source,
		"CREATE TABLE item (id bigint PRIMARY KEY, label text)",
		"INSERT INTO item SELECT i, 'item ' || i FROM generate_series(1, 100) AS i",
	)
	testutil.MustExec(ctx, t, pair.Dest,
		"CREATE TABLE item (id bigint PRIMARY KEY, label text)",
	)

	schema, err := dbschema.Introspect(ctx, pair.Source, "public")
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	ids := make([]any, 0, 100)
	for i := int64(1); i <= 100; i++ {
		ids = append(ids, i)
	}
	schema.MustGetTable("item").NeedTransferPKs().Union(ids)

	cfg := &config.Config{
		ExcludedTables: map[string]bool{},
		ChunkSize:      7, // force many chunks through one table
	}
	trans := New(schema, pair.Source, pair.Dest, cfg, nil, pair.DblinkSourceConn)
	if err := trans.Transfer(ctx); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	var count int64
	if err := pair.Dest.QueryRow(ctx, "SELECT count(*) FROM item").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 100 {
		t.Errorf("dest item count = %d, want 100", count)
	}
}

func destPKs(ctx context.Context, t *testing.T, pair *testutil.PostgresPair, table string) []int64 {
	t.Helper()
	rows, err := pair.Dest.Query(ctx, "SELECT id FROM "+table)
	if err != nil {
		t.Fatalf("querying %s: %v", table, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scanning %s: %v", table, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("reading %s: %v", table, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalInt64s(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
