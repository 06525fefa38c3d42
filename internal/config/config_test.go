package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_CONFIG", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, []string{"orders", "order_requests", "wallet"}, cfg.KafkaTopics)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: "8080"
store: memory
memory_snapshot: /var/lib/fieldops/state.json
event_broker: rabbitmq
token_ttl: 1h
kafka_brokers: [k1:9092, k2:9092]
`), 0o600))

	t.Setenv("APP_CONFIG", path)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "/var/lib/fieldops/state.json", cfg.MemorySnapshot)
	assert.Equal(t, "rabbitmq", cfg.EventBroker)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.KafkaBrokers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("APP_CONFIG", "")
	t.Setenv("APP_STORE", "sqlite")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("APP_STORE", "memory")
	t.Setenv("APP_TOKEN_TTL", "forever")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_TickersMustBePositive(t *testing.T) {
	for key, value := range map[string]string{
		"APP_OUTBOX_INTERVAL":    "0s",
		"APP_PERMISSION_REFRESH": "-1s",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv("APP_CONFIG", "")
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.ErrorContains(t, err, "must be positive")
		})
	}

	t.Run("outbox batch", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.yaml")
		require.NoError(t, os.WriteFile(path, []byte("outbox_batch: 0\n"), 0o600))
		t.Setenv("APP_CONFIG", path)
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "outbox batch")
	})
}
