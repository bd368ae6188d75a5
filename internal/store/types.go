package store

import "strings"

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
	DBTypeRedis    DatabaseType = "redis"
	DBTypeMemory   DatabaseType = "memory"
)

type DBConfig struct {
	DSN  string
	Type DatabaseType
	// MigrationsDir is used by the SQL backends.
	MigrationsDir string
	// IndexedFields get a secondary index on backends that need one for FindEqual.
	IndexedFields []string
}

// DetectType guesses the backend from the DSN, defaulting to sqlite for bare file paths.
func DetectType(dsn string) DatabaseType {
	switch {
	case strings.HasPrefix(dsn, "postgres"):
		return DBTypePostgres
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return DBTypeRedis
	case strings.HasPrefix(dsn, "memory://"):
		return DBTypeMemory
	default:
		return DBTypeSQLite
	}
}

// Collections used by the application.
const (
	UsersCollection       = "users"
	EntriesCollection     = "logbookEntries"
	EvaluationsCollection = "evaluations"
	CredentialsCollection = "credentials"
	SessionsCollection    = "sessions"
	TelegramCollection    = "telegram"
)

// DefaultIndexedFields are the equality lookups the application performs.
var DefaultIndexedFields = []string{"supervisorCode", "email"}
