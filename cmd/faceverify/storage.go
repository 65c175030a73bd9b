package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-faceverify/migrations"
	sqlstore "github.com/goliatone/go-faceverify/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"

	historyCacheTTL = 30 * time.Second
)

type dbConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c dbConfig) GetDebug() bool                { return c.debug }
func (c dbConfig) GetDriver() string             { return c.driver }
func (c dbConfig) GetServer() string             { return c.dsn }
func (c dbConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c dbConfig) GetOtelIdentifier() string     { return "go-faceverify" }

type attemptStorage struct {
	client *persistence.Client
	store  *sqlstore.CachedAttemptStore
}

func (s *attemptStorage) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// openAttemptStorage connects, applies migrations and wraps the attempt
// store with a short-lived page cache.
func openAttemptStorage(ctx context.Context, cfg dbConfig) (*attemptStorage, error) {
	schemaDialect, err := migrations.DialectForDriver(cfg.driver)
	if err != nil {
		return nil, fmt.Errorf("faceverify: unsupported db driver %q", cfg.driver)
	}
	driver := driverPostgres
	var dialect schema.Dialect = pgdialect.New()
	if schemaDialect == migrations.DialectSQLite {
		driver = driverSQLite
		dialect = sqlitedialect.New()
	}
	if strings.TrimSpace(cfg.dsn) == "" {
		return nil, fmt.Errorf("faceverify: db dsn is required for driver %s", driver)
	}
	cfg.driver = driver

	sqlDB, err := sql.Open(driver, cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("faceverify: open %s: %w", driver, err)
	}
	if driver == driverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("faceverify: persistence client: %w", err)
	}

	_, err = migrations.Register(schemaDialect, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("faceverify: migrate: %w", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = historyCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("faceverify: attempt cache: %w", err)
	}
	store, err := sqlstore.NewCachedAttemptStore(factory.AttemptStore(), cacheService)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &attemptStorage{client: client, store: store}, nil
}
