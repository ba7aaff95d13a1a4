package config

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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  jwt_secret: test-secret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "launchpad", cfg.Mongo.Database)
	assert.Equal(t, "conversations", cfg.Mongo.ConversationsCollection)
	assert.Equal(t, "messages", cfg.Mongo.MessagesCollection)
	assert.Equal(t, "message.created", cfg.Kafka.TopicMessageCreated)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.PongTimeout)
	assert.Equal(t, int64(64*1024), cfg.WS.MaxMessageBytes)
	assert.Equal(t, 30, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoadReadsValues(t *testing.T) {
	path := writeConfig(t, `
app:
  env: production
  port: 9090
  jwt_secret: s3cret
mongodb:
  uri: mongodb://db:27017
  database: chat
redis:
  addr: cache:6379
  prefix: lp
kafka:
  brokers:
    - broker-1:9092
    - broker-2:9092
ws:
  ping_interval_seconds: 15
rate_limit:
  limit: 5
  window_seconds: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "chat", cfg.Mongo.Database)
	assert.Equal(t, "lp", cfg.Redis.Prefix)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Second, cfg.PingInterval)
	assert.Equal(t, 5, cfg.RateLimit.Limit)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "app:\n  port: 9090\n  jwt_secret: file-secret\n")
	t.Setenv("APP_PORT", "7001")
	t.Setenv("APP_JWT_SECRET", "env-secret")
	t.Setenv("APP_MONGODB_URI", "mongodb://env-host:27017")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.App.Port)
	assert.Equal(t, "env-secret", cfg.App.JWTSecret)
	assert.Equal(t, "mongodb://env-host:27017", cfg.Mongo.URI)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
