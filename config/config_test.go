package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":8080"
database:
  username: "shop"
  password: "secret"
  host: "db"
  port: "3307"
  database: "shop"
jwt:
  tokenTTL: "2h"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TokenTTL)
	assert.Equal(t, "jwt/private_key.pem", cfg.JWT.PrivateKeyPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "shop:secret@tcp(db:3307)/shop?charset=utf8mb4&parseTime=True&loc=Local", cfg.Database.DSN())
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: "db"
redis:
  addr: "cache:6379"
`)
	t.Setenv("MARKETPLACE_DATABASE_HOST", "override")
	t.Setenv("MARKETPLACE_JWT_TOKEN_TTL", "30m")
	t.Setenv("MARKETPLACE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.Database.Host)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Minute, cfg.JWT.TokenTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TokenTTL)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := NewLogger(LogConfig{Level: "loud"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log = NewLogger(LogConfig{Level: "warn"})
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
}
