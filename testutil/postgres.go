// Package testutil provides the shared two-database Postgres harness the
// integration tests run against: one container, a "source" database the
// collector reads and a "dest" database the transporter writes.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testUser     = "testuser"
	testPassword = "testpass"
	sourceDBName = "source"
	destDBName   = "dest"
)

// PostgresPair holds one running Postgres container with the source and
// destination test databases created inside it.
type PostgresPair struct {
	Container testcontainers.Container

	SourceDSN string
	DestDSN   string

	Source *pgxpool.Pool
	Dest   *pgxpool.Pool

	// DblinkSourceConn is the connection string the destination side
	// passes to dblink to reach the source. dblink connects from inside
	// the container, so this addresses the unmapped in-container port,
	// not the host-mapped one the test process itself uses.
	DblinkSourceConn string
}

// StartPostgresPair starts a Postgres container and creates the source
// and destination databases in it. Tests share one container per call;
// both databases start empty.
func StartPostgresPair(ctx context.Context, t *testing.T) *PostgresPair {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:17",
		postgres.WithDatabase(sourceDBName),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	sourceDSN := buildDSN(host, port.Int(), sourceDBName)
	destDSN := buildDSN(host, port.Int(), destDBName)

	sourcePool, err := pgxpool.New(ctx, sourceDSN)
	if err != nil {
		t.Fatalf("Failed to connect to source database: %v", err)
	}

	if _, err := sourcePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", destDBName)); err != nil {
		t.Fatalf("Failed to create destination database: %v", err)
	}

	destPool, err := pgxpool.New(ctx, destDSN)
	if err != nil {
		t.Fatalf("Failed to connect to destination database: %v", err)
	}
	if err := destPool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping destination database: %v", err)
	}

	return &PostgresPair{
		Container: container,
		SourceDSN: sourceDSN,
		DestDSN:   destDSN,
		Source:    sourcePool,
		Dest:      destPool,
		DblinkSourceConn: fmt.Sprintf("host=localhost port=5432 dbname=%s user=%s password=%s",
			sourceDBName, testUser, testPassword),
	}
}

// Terminate closes the pools and stops the container.
func (p *PostgresPair) Terminate(ctx context.Context, t *testing.T) {
	p.Source.Close()
	p.Dest.Close()
	if err := p.Container.Terminate(ctx); err != nil {
		t.Logf("Failed to terminate container: %v", err)
	}
}

// MustExec applies each statement against the pool, failing the test on
// the first error. Used to lay down test schemas and rows.
func MustExec(ctx context.Context, t *testing.T, pool *pgxpool.Pool, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("Failed to execute %q: %v", stmt, err)
		}
	}
}

func buildDSN(host string, port int, database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		testUser, testPassword, host, port, database)
}
