package migrate_test

import (
	"context"
	"testing"

	"digitalcoo/internal/db"
	"digitalcoo/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	applied, err := migrate.MigrateContext(ctx, conn)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(applied) == 0 || applied[0] != "001_init.sql" {
		t.Fatalf("unexpected applied list %v", applied)
	}
	applied, err = migrate.MigrateContext(ctx, conn)
	if err != nil || len(applied) != 0 {
		t.Fatalf("second run should be a no-op: %v %v", applied, err)
	}
	v, err := migrate.Version(ctx, conn)
	if err != nil {
		t.Fatal(err)
	}
	all, _ := migrate.Migrations()
	if v != all[len(all)-1].Version {
		t.Fatalf("version %d does not match latest migration", v)
	}
	for _, table := range []string{"projects", "tasks", "agents", "files", "social_posts", "notifications", "activity_logs", "team_members", "api_keys"} {
		var name string
		if err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
