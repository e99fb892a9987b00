package dbschema

import (
	"context"
	"testing"

	"github.com/Ganzgorn/databaser/testutil"
)

func TestIntrospect(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	pair := testutil.StartPostgresPair(ctx, t)
	defer pair.Terminate(ctx, t)

	testutil.MustExec(ctx, t, pair.Source,
		"CREATE TABLE org (id bigint PRIMARY KEY, name text NOT NULL)",
		`CREATE TABLE account (
			id bigint PRIMARY KEY,
			org_id bigint NOT NULL REFERENCES org (id),
			profile_id bigint UNIQUE,
			nickname text
		)`,
		"CREATE TABLE profile (id bigint PRIMARY KEY)",
		"ALTER TABLE account ADD CONSTRAINT account_profile_fkey FOREIGN KEY (profile_id) REFERENCES profile (id)",
	)

	schema, err := Introspect(ctx, pair.Source, "public")
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	org, ok := schema.GetTable("org")
	if !ok {
		t.Fatal("org not introspected")
	}
	if org.PrimaryKey != "id" {
		t.Errorf("org primary key = %q", org.PrimaryKey)
	}
	name := org.GetColumnByName("name")
	if name == nil || name.IsNullable {
		t.Errorf("org.name should be a non-nullable column, got %+v", name)
	}

	account := schema.MustGetTable("account")
	orgID := account.GetColumnByName("org_id")
	if orgID == nil || orgID.ConstraintTable != "org" {
		t.Errorf("account.org_id should reference org, got %+v", orgID)
	}
	profileID := account.GetColumnByName("profile_id")
	if profileID == nil || !profileID.IsUnique || profileID.ConstraintTable != "profile" {
		t.Errorf("account.profile_id should be a unique FK to profile, got %+v", profileID)
	}

	// The reverse index is ready for the collector's reverse walks.
	referencing := schema.GetColumnsReferencing("org")
	if len(referencing) != 1 {
		t.Fatalf("expected one table referencing org, got %d", len(referencing))
	}
	for tbl, cols := range referencing {
		if tbl.Name != "account" || len(cols) != 1 || cols[0].Name != "org_id" {
			t.Errorf("reverse index wrong: %s %v", tbl.Name, cols)
		}
	}
}
