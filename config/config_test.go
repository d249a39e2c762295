package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NEO4J_URI", "bolt://localhost:7687")
	t.Setenv("NEO4J_USERNAME", "neo4j")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NEO4J_URI", "NEO4J_USERNAME", "NEO4J_PASSWORD",
		"OPENAI_API_KEY", "OPENAI_MODEL", "REDIS_URL",
		"BIZGRAPH_SCHEMA", "BIZGRAPH_HTTP_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, DefaultModel, cfg.OpenAI.Model)
	assert.Equal(t, DefaultSchemaPath, cfg.SchemaPath)
	assert.Equal(t, DefaultQueryTimeout, cfg.Neo4j.QueryTimeout.Std())
}

func TestFromEnv_ReportsEveryMissingSetting(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_URI", "bolt://localhost:7687")

	_, err := FromEnv()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ElementsMatch(t, []string{"NEO4J_USERNAME", "NEO4J_PASSWORD", "OPENAI_API_KEY"}, cfgErr.Missing)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
neo4j:
  uri: bolt://filehost:7687
  username: neo4j
  password: from-file
  query_timeout: 10s
openai:
  api_key: sk-file
  model: gpt-4o
http_addr: ":9090"
`), 0o600))

	t.Setenv("NEO4J_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt://filehost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "from-env", cfg.Neo4j.Password, "environment wins over the file")
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 10*time.Second, cfg.Neo4j.QueryTimeout.Std())
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("neo4j: ["), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}
