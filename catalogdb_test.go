package catalogdb_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/loykin/catalogdb"
)

func TestServiceLifecycle(t *testing.T) {
	dir := t.TempDir()
	svc := catalogdb.New(
		catalogdb.WithEnv(catalogdb.MapEnv{"DB_PATH": "var/catalog.db"}),
		catalogdb.WithWorkingDir(dir),
	)
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	if err := svc.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !svc.IsConnected() {
		t.Fatalf("expected connected service, state=%s", svc.State())
	}
	if got := svc.Config().FilePath; got != filepath.Join(dir, "var", "catalog.db") {
		t.Fatalf("file path=%s", got)
	}

	res, err := svc.Query(ctx, "SELECT COUNT(*) AS n FROM schema_migrations")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	row, ok := res.First()
	if !ok {
		t.Fatal("expected one row")
	}
	if n := row.Int64("n"); n != 9 {
		t.Fatalf("applied migrations=%d want 9", n)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := catalogdb.New(catalogdb.WithEnv(catalogdb.MapEnv{}))
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := svc.Query(context.Background(), "SELECT 1"); !errors.Is(err, catalogdb.ErrNotInitialized) {
		t.Fatalf("err=%v want ErrNotInitialized", err)
	}
}

func TestMigrateWithAdapter(t *testing.T) {
	cfg, err := catalogdb.ParseURL("sqlite:///%kernel.project_dir%/direct.db", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	adapter, err := catalogdb.NewAdapter(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := catalogdb.Migrate(ctx, adapter); !errors.Is(err, catalogdb.ErrNotConnected) {
		t.Fatalf("err=%v want ErrNotConnected before Initialize", err)
	}
	if err := adapter.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = adapter.Close() }()

	applied, err := catalogdb.Migrate(ctx, adapter)
	if err != nil || len(applied) != 9 {
		t.Fatalf("Migrate => %v, %v", applied, err)
	}
	applied, err = catalogdb.Migrate(ctx, adapter)
	if err != nil || len(applied) != 0 {
		t.Fatalf("second Migrate => %v, %v", applied, err)
	}
}

func TestResolveUnsupported(t *testing.T) {
	_, err := catalogdb.Resolve(catalogdb.MapEnv{"DB_TYPE": "oracle"}, t.TempDir())
	if !errors.Is(err, catalogdb.ErrUnsupportedKind) {
		t.Fatalf("err=%v want ErrUnsupportedKind", err)
	}
}
