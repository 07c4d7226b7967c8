package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaultsProduceValidConfig(t *testing.T) {
	cfg := newDefaultConfig(t)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 20*time.Second, cfg.Network.FrameTimeout)
	assert.Equal(t, 10*time.Second, cfg.Network.ElementTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Harvest.SettleDelay)
	assert.Equal(t, 3, cfg.Harvest.MaxAttempts)
	assert.Equal(t, "routes.yaml", cfg.Harvest.RoutesFile)
}

func TestOverridesSurviveUnmarshal(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("harvest.max_attempts", 5)
	v.Set("harvest.years", []string{"2021", "2022"})
	v.Set("browser.headless", false)
	v.Set("network.element_timeout", "2s")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Harvest.MaxAttempts)
	assert.Equal(t, []string{"2021", "2022"}, cfg.Harvest.Years)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 2*time.Second, cfg.Network.ElementTimeout)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero attempts", func(c *Config) { c.Harvest.MaxAttempts = 0 }, "max_attempts"},
		{"negative attempts", func(c *Config) { c.Harvest.MaxAttempts = -1 }, "max_attempts"},
		{"missing routes file", func(c *Config) { c.Harvest.RoutesFile = "" }, "routes_file"},
		{"zero element timeout", func(c *Config) { c.Network.ElementTimeout = 0 }, "timeouts"},
		{"zero window", func(c *Config) { c.Browser.WindowWidth = 0 }, "window_width"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newDefaultConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestOutputDirExpandsHome(t *testing.T) {
	cfg := newDefaultConfig(t)
	cfg.Harvest.OutputDir = "~/framewalk-data"
	dir, err := cfg.OutputDir()
	require.NoError(t, err)
	assert.NotContains(t, dir, "~")
}
