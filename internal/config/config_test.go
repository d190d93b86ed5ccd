package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
	assert.Equal(t, "https://api.github.com/graphql", cfg.GitHub.GraphQLURL)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.GitHubTTL())
	assert.Equal(t, time.Hour, cfg.RobloxTTL())
	assert.Equal(t, 100*time.Millisecond, cfg.RobloxPace())
	assert.Equal(t, 10*time.Second, cfg.ClientTimeout())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
github:
  ttl: 30m
roblox:
  pace: 250ms
cache:
  backend: leveldb
  leveldb:
    path: /tmp/proxy-cache
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 30*time.Minute, cfg.GitHubTTL())
	assert.Equal(t, time.Hour, cfg.RobloxTTL())
	assert.Equal(t, 250*time.Millisecond, cfg.RobloxPace())
	assert.Equal(t, BackendLevelDB, cfg.Cache.Backend)
	assert.Equal(t, "/tmp/proxy-cache", cfg.Cache.LevelDB.Path)
}

func TestLoadTokenFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "env-token")

	path := writeConfig(t, "github:\n  token: file-token\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.GitHub.Token)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "github:\n  ttl: soon\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "github.ttl")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "cache:\n  backend: memcached\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown cache.backend")
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	path := writeConfig(t, "cache:\n  backend: postgres\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "cache.postgres.dsn")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
