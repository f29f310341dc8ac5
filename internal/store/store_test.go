package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/store/mysql"
	"github.com/loykin/catalogdb/internal/store/postgresql"
	"github.com/loykin/catalogdb/internal/store/sqlite"
)

func TestNew_Disabled(t *testing.T) {
	a, err := New(dbconfig.Disabled())
	if err != nil {
		t.Fatalf("New(disabled) err: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil adapter for disabled config, got %T", a)
	}
}

func TestNew_PerKind(t *testing.T) {
	cases := []struct {
		cfg  dbconfig.Config
		want any
	}{
		{dbconfig.Config{Kind: dbconfig.KindSQLite, FilePath: filepath.Join(t.TempDir(), "x.db")}, &sqlite.Adapter{}},
		{dbconfig.Config{Kind: dbconfig.KindMySQL, Host: "h", Port: 3306, User: "u"}, &mysql.Adapter{}},
		{dbconfig.Config{Kind: dbconfig.KindPostgres, Host: "h", Port: 5432, User: "u"}, &postgresql.Adapter{}},
	}
	for _, tc := range cases {
		a, err := New(tc.cfg)
		if err != nil {
			t.Fatalf("New(%s) err: %v", tc.cfg.Kind, err)
		}
		switch tc.want.(type) {
		case *sqlite.Adapter:
			if _, ok := a.(*sqlite.Adapter); !ok {
				t.Fatalf("kind %s: got %T", tc.cfg.Kind, a)
			}
		case *mysql.Adapter:
			if _, ok := a.(*mysql.Adapter); !ok {
				t.Fatalf("kind %s: got %T", tc.cfg.Kind, a)
			}
		case *postgresql.Adapter:
			if _, ok := a.(*postgresql.Adapter); !ok {
				t.Fatalf("kind %s: got %T", tc.cfg.Kind, a)
			}
		}
		if a.Kind() != tc.cfg.Kind {
			t.Fatalf("Kind()=%s want %s", a.Kind(), tc.cfg.Kind)
		}
		if a.IsConnected() {
			t.Fatalf("kind %s: adapter must be returned uninitialized", tc.cfg.Kind)
		}
	}
}

func TestNew_Unsupported(t *testing.T) {
	a, err := New(dbconfig.Config{Kind: "oracle"})
	if a != nil {
		t.Fatalf("expected nil adapter, got %T", a)
	}
	if !errors.Is(err, dbconfig.ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}
