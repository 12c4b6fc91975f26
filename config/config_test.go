package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, StoreBackendPostgres, cfg.Store)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Database.UseSSL)
	assert.Empty(t, cfg.MQ.Backend)
	assert.Equal(t, "biblio.loans", cfg.MQ.LoanEventsChannel)
	assert.Equal(t, cfg.MQ.LoanEventsChannel, cfg.Reminders.Channel)
	assert.Zero(t, cfg.Reminders.Interval)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("MQ_BACKEND", "NATS")
	t.Setenv("NATS_RECONNECT_WAIT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://desk.example.org/, http://localhost:5173 ,")
	t.Setenv("REMINDER_INTERVAL", "1h")
	t.Setenv("RABBITMQ_QUEUE_DURABLE", "not-a-bool")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, StoreBackendMemory, cfg.Store)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "nats", cfg.MQ.Backend)
	assert.Equal(t, 3*time.Second, cfg.MQ.NATS.ReconnectWait)
	assert.Equal(t, []string{"https://desk.example.org", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, time.Hour, cfg.Reminders.Interval)
	assert.True(t, cfg.MQ.RabbitMQ.QueueDurable)
}
