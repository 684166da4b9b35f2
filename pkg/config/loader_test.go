package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/config"
)

type clientConfig struct {
	URL        string `env:"TENEO_WS_URL"`
	ClientType string `env:"TENEO_CLIENT_TYPE" envDefault:"user"`
	TimeoutMS  int    `env:"TENEO_CONNECT_TIMEOUT_MS" envDefault:"30000"`
}

type requiredConfig struct {
	Secret string `env:"TENEO_SECRET_HEX,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when env is unset", func(t *testing.T) {
		config.ResetCache()

		var cfg clientConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "user", cfg.ClientType)
		assert.Equal(t, 30000, cfg.TimeoutMS)
	})

	t.Run("reads environment values", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TENEO_WS_URL", "wss://coordinator.example.com/ws")
		t.Setenv("TENEO_CLIENT_TYPE", "agent")

		var cfg clientConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "wss://coordinator.example.com/ws", cfg.URL)
		assert.Equal(t, "agent", cfg.ClientType)
	})

	t.Run("caches per type", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TENEO_WS_URL", "wss://first.example.com/ws")

		var first clientConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("TENEO_WS_URL", "wss://second.example.com/ws")
		var second clientConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, "wss://first.example.com/ws", second.URL, "cached value wins until ResetCache")

		config.ResetCache()
		var third clientConfig
		require.NoError(t, config.Load(&third))
		assert.Equal(t, "wss://second.example.com/ws", third.URL)
	})

	t.Run("missing required variable fails", func(t *testing.T) {
		config.ResetCache()

		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer is rejected", func(t *testing.T) {
		var cfg *clientConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	config.ResetCache()

	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}
