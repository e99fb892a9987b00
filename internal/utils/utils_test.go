package utils

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	if diff := cmp.Diff([]string{"a", "b", "c"}, SortedKeys(m)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(&ConnectionConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "app",
		User:     "svc",
		Password: "secret",
		SSLMode:  "require",
	})

	for _, part := range []string{"host=db.internal", "port=5433", "dbname=app", "user=svc", "password=secret", "sslmode=require"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("dsn %q missing %q", dsn, part)
		}
	}
}

func TestBuildDSNOmitsEmptyPassword(t *testing.T) {
	dsn := BuildDSN(&ConnectionConfig{Host: "localhost", Port: 5432, Database: "app", User: "svc"})
	if strings.Contains(dsn, "password=") {
		t.Errorf("empty password should be omitted: %q", dsn)
	}
}
