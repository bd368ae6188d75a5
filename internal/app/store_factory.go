package app

import (
	"fmt"

	"github.com/shrimpsizemoose/logbook/internal/store"
	"github.com/shrimpsizemoose/logbook/internal/store/memory"
	"github.com/shrimpsizemoose/logbook/internal/store/postgres"
	"github.com/shrimpsizemoose/logbook/internal/store/redis"
	"github.com/shrimpsizemoose/logbook/internal/store/sqlite"
)

func NewStore(dsn, migrationsDir string) (store.Store, error) {
	config := &store.DBConfig{
		DSN:           dsn,
		Type:          store.DetectType(dsn),
		MigrationsDir: migrationsDir,
		IndexedFields: store.DefaultIndexedFields,
	}

	switch config.Type {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(config)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(config)
	case store.DBTypeRedis:
		return redis.NewRedisStore(config)
	case store.DBTypeMemory:
		return memory.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
