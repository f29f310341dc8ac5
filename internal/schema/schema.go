// Package schema holds the ordered catalog migrations, one YAML file per
// step with statements per dialect.
package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/migration"
	"gopkg.in/yaml.v3"
)

//go:embed migrations/*.yaml
var embedded embed.FS

var versionFileRegex = regexp.MustCompile(`^(\d+)_.*\.(ya?ml)$`)

// file is the on-disk shape of one migration.
type file struct {
	Up struct {
		All      []string `yaml:"all"`
		SQLite   []string `yaml:"sqlite"`
		MySQL    []string `yaml:"mysql"`
		Postgres []string `yaml:"postgres"`
	} `yaml:"up"`
}

func (f file) statements(kind dbconfig.Kind) []string {
	out := append([]string(nil), f.Up.All...)
	switch kind {
	case dbconfig.KindSQLite:
		out = append(out, f.Up.SQLite...)
	case dbconfig.KindMySQL:
		out = append(out, f.Up.MySQL...)
	case dbconfig.KindPostgres:
		out = append(out, f.Up.Postgres...)
	}
	return out
}

type vfile struct {
	index int
	name  string
	path  string
}

// listMigrationFiles returns the versioned files under dir sorted by their
// numeric prefix. Two files sharing a prefix are an error.
func listMigrationFiles(fsys fs.FS, dir string) ([]vfile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var files []vfile
	seen := map[int]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		m := versionFileRegex.FindStringSubmatch(name)
		if len(m) == 0 {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if prev, dup := seen[idx]; dup {
			return nil, fmt.Errorf("%w: %s and %s share version %d", migration.ErrDuplicateMigration, prev, name, idx)
		}
		seen[idx] = name
		files = append(files, vfile{index: idx, name: name, path: path.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	return files, nil
}

// Load reads the migrations in dir of fsys for one dialect. Each migration
// is named after its file without the extension.
func Load(fsys fs.FS, dir string, kind dbconfig.Kind) ([]migration.Migration, error) {
	files, err := listMigrationFiles(fsys, dir)
	if err != nil {
		return nil, err
	}
	out := make([]migration.Migration, 0, len(files))
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		var doc file
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
		stmts := doc.statements(kind)
		if len(stmts) == 0 {
			return nil, fmt.Errorf("%s has no statements for %s", f.name, kind)
		}
		for i := range stmts {
			stmts[i] = strings.TrimSpace(stmts[i])
		}
		out = append(out, migration.Migration{
			Name:       strings.TrimSuffix(f.name, path.Ext(f.name)),
			Statements: stmts,
		})
	}
	return out, nil
}

// For returns the catalog migrations for kind.
func For(kind dbconfig.Kind) ([]migration.Migration, error) {
	if !kind.IsClientServer() && kind != dbconfig.KindSQLite {
		return nil, fmt.Errorf("%w: %q", dbconfig.ErrUnsupportedKind, kind)
	}
	return Load(embedded, "migrations", kind)
}

// Source yields the migration list for a backend kind.
type Source func(kind dbconfig.Kind) ([]migration.Migration, error)

var _ Source = For
