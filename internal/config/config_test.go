package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Server.Address)
	assert.Equal(t, "MSFS", cfg.Metar.Source)
	assert.Equal(t, "efb:settings", cfg.Redis.SettingsKey)
	assert.Equal(t, "efb/sim", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 5*time.Second, cfg.MQTT.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("METAR_SOURCE", "VATSIM")
	t.Setenv("METAR_CACHE_TTL", "30s")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://localhost:3000, http://efb.local")
	t.Setenv("ENABLE_HISTORY", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "VATSIM", cfg.Metar.Source)
	assert.Equal(t, 30*time.Second, cfg.Metar.CacheTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://efb.local"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Features.EnableHistory)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing redis url",
			mutate:  func(c *Config) { c.Redis.URL = "" },
			wantErr: "REDIS_URL",
		},
		{
			name: "api source without base url",
			mutate: func(c *Config) {
				c.Metar.Source = "IVAO"
				c.Metar.APIBaseURL = ""
			},
			wantErr: "METAR_API_URL",
		},
		{
			name:    "non-positive batch size",
			mutate:  func(c *Config) { c.Performance.HistoryBatchSize = 0 },
			wantErr: "HISTORY_BATCH_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
