package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(PathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "taskflow.aggregates.changed", cfg.NATS.Subject)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "todos")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("JWT_SECRET", "shh")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "shh", cfg.JWT.Secret)
	assert.Equal(t, "host=db.internal port=6543 user=app password=pw dbname=todos sslmode=disable", cfg.ConnString())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	yaml := `server:
  addr: ":9000"
store:
  backend: neo4j
neo4j:
  uri: bolt://localhost:7687
log:
  level: debug
  format: console
cors:
  origins: "https://a.example, https://b.example"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(PathEnv, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, BackendNeo4j, cfg.Store.Backend)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "warn", cfg.Log.Level, "environment wins over the file")
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(PathEnv, "")

	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := Load()
	assert.ErrorContains(t, err, "store.backend")

	t.Setenv("STORE_BACKEND", "neo4j")
	t.Setenv("NEO4J_URI", "")
	_, err = Load()
	assert.ErrorContains(t, err, "neo4j.uri")

	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "db.host", envKey("DB_HOST"))
	assert.Equal(t, "openai.api_key", envKey("OPENAI_API_KEY"))
	assert.Empty(t, envKey("PATH"))
	assert.Empty(t, envKey("HOME_DIR"))
}
