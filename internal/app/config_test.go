package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9999"

[auth]
jwt_secret = "from-file"
token_ttl = "2h"

[database]
dsn = "memory://"

[[api.required_headers]]
name = "X-Client"
value = "logbook"

[[export.students]]
student_id = "s1"
sheet_name = "Ada Obi"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", config.Server.Port)
	assert.Equal(t, "from-file", config.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, config.TokenTTL())
	assert.Equal(t, "Authorization", config.Auth.TokenHeader)
	assert.Equal(t, "./migrations", config.Database.MigrationsDir)
	require.Len(t, config.API.RequiredHeaders, 1)
	require.Len(t, config.Export.Students, 1)
	assert.Equal(t, "Ada Obi", config.Export.Students[0].SheetName)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9999"
[auth]
jwt_secret = "from-file"
`)
	t.Setenv("LOGBOOK_JWT_SECRET", "from-env")
	t.Setenv("LOGBOOK_DATABASE_DSN", "memory://")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Auth.JWTSecret)
	assert.Equal(t, "memory://", config.Database.DSN)
	assert.Equal(t, 24*time.Hour, config.TokenTTL())
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing port", content: "[auth]\njwt_secret = \"x\"\n"},
		{name: "missing secret", content: "[server]\nport = \":1\"\n"},
		{name: "broken toml", content: "[server\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
