package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	faceverify "github.com/goliatone/go-faceverify"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const rootPath = "data/sql/migrations"

// DialectForDriver maps a database/sql driver name to its schema dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: no schema for driver %q", driver)
	}
}

// Plan is the ordered set of migrations for one dialect.
type Plan struct {
	Dialect  Dialect
	Path     string
	Versions []string
	FS       fs.FS
}

// Load resolves the plan for dialect from the embedded schema, or from the
// first non-nil source when one is given. Every version must ship both an
// up and a down file.
func Load(dialect Dialect, sources ...fs.FS) (Plan, error) {
	root := faceverify.GetMigrationsFS()
	for _, source := range sources {
		if source != nil {
			root = source
			break
		}
	}

	path := rootPath
	if dialect == DialectSQLite {
		path += "/sqlite"
	} else if dialect != DialectPostgres {
		return Plan{}, fmt.Errorf("migrations: unknown dialect %q", dialect)
	}
	sub, err := fs.Sub(root, path)
	if err != nil {
		return Plan{}, fmt.Errorf("migrations: resolve %s: %w", path, err)
	}
	versions, err := pairedVersions(sub)
	if err != nil {
		return Plan{}, fmt.Errorf("migrations: %s: %w", dialect, err)
	}
	return Plan{Dialect: dialect, Path: path, Versions: versions, FS: sub}, nil
}

// Register loads the plan for dialect and hands its filesystem to register,
// typically a persistence client's RegisterSQLMigrations.
func Register(dialect Dialect, register func(fs.FS), sources ...fs.FS) (Plan, error) {
	if register == nil {
		return Plan{}, fmt.Errorf("migrations: register function is required")
	}
	plan, err := Load(dialect, sources...)
	if err != nil {
		return Plan{}, err
	}
	register(plan.FS)
	return plan, nil
}

func pairedVersions(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	up := map[string]bool{}
	down := map[string]bool{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			up[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			down[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	if len(up) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	versions := make([]string, 0, len(up))
	for version := range up {
		if !down[version] {
			return nil, fmt.Errorf("version %s has no down migration", version)
		}
		versions = append(versions, version)
	}
	for version := range down {
		if !up[version] {
			return nil, fmt.Errorf("version %s has no up migration", version)
		}
	}
	sort.Strings(versions)
	return versions, nil
}
