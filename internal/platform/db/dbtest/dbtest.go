// Package dbtest gives repository tests a migrated PostgreSQL pool. Each
// call gets its own schema, so packages can run against one database in
// parallel. Tests skip unless CLINIC_TEST_DATABASE_URL holds a postgres://
// URL for a disposable database.
package dbtest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/db"
	"github.com/ashirxD/Hospital-App-sub000/migrations"
)

const EnvDatabaseURL = "CLINIC_TEST_DATABASE_URL"

// Pool returns a pool whose search_path is a fresh schema with every
// migration applied. The schema is dropped when the test ends.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s is not set", EnvDatabaseURL)
	}
	ctx := context.Background()

	admin, err := db.NewPool(ctx, db.PoolConfig{URL: url, MaxConns: 2})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		if _, err := admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: withSearchPath(url, schema), MaxConns: 16})
	if err != nil {
		t.Fatalf("connect to %s: %v", schema, err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// pgx passes unknown URL parameters to the server as runtime settings.
func withSearchPath(url, schema string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "search_path=" + schema + ",public"
}
