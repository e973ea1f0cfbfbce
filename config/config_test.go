package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("COLLECTOR_TIMEOUT", "")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, CollectorTimeout, cfg.CollectorTimeout)
	assert.Equal(t, DedupCapacity, cfg.DedupCapacity)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Run("duration accepts seconds and go syntax", func(t *testing.T) {
		t.Setenv("COLLECTOR_TIMEOUT", "3")
		assert.Equal(t, 3*time.Second, Load().CollectorTimeout)

		t.Setenv("COLLECTOR_TIMEOUT", "250ms")
		assert.Equal(t, 250*time.Millisecond, Load().CollectorTimeout)
	})

	t.Run("invalid duration falls back", func(t *testing.T) {
		t.Setenv("COLLECTOR_TIMEOUT", "soon")
		assert.Equal(t, CollectorTimeout, Load().CollectorTimeout)
	})

	t.Run("broker list is split and trimmed", func(t *testing.T) {
		t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "kafka-1:9092, kafka-2:9092 ,")
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, Load().KafkaBrokers)
	})

	t.Run("bools parse", func(t *testing.T) {
		t.Setenv("S3_USE_PATH_STYLE", "true")
		t.Setenv("DEBUG", "1")
		cfg := Load()
		assert.True(t, cfg.S3UsePathStyle)
		assert.True(t, cfg.Debug)
	})
}
