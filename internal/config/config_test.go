package config_test

import (
	"testing"
	"time"

	"github.com/nikolayk812/storefront-state/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"STOREFRONT_BACKEND_URL", "STOREFRONT_REQUEST_TIMEOUT", "STOREFRONT_GATEWAY_KEY",
		"STOREFRONT_CURRENCY", "STOREFRONT_STORAGE", "KAFKA_BROKERS", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, currency.INR, cfg.Currency)
	assert.Equal(t, config.StorageRedis, cfg.Storage)
	assert.Empty(t, cfg.GatewayKey)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_BACKEND_URL", "https://shop.example.com")
	t.Setenv("STOREFRONT_REQUEST_TIMEOUT", "3s")
	t.Setenv("STOREFRONT_GATEWAY_KEY", "rzp_test_1")
	t.Setenv("STOREFRONT_CURRENCY", "usd")
	t.Setenv("STOREFRONT_STORAGE", "Postgres")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", cfg.BackendURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "rzp_test_1", cfg.GatewayKey)
	assert.Equal(t, currency.USD, cfg.Currency)
	assert.Equal(t, config.StoragePostgres, cfg.Storage)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		wantError string
	}{
		{name: "timeout", key: "STOREFRONT_REQUEST_TIMEOUT", value: "soon", wantError: "STOREFRONT_REQUEST_TIMEOUT"},
		{name: "currency", key: "STOREFRONT_CURRENCY", value: "rupees", wantError: "STOREFRONT_CURRENCY"},
		{name: "storage", key: "STOREFRONT_STORAGE", value: "sqlite", wantError: "STOREFRONT_STORAGE[sqlite]"},
		{name: "log level", key: "LOG_LEVEL", value: "loud", wantError: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			require.ErrorContains(t, err, tt.wantError)
		})
	}
}
