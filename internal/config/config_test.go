package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.Equal(t, 2*time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, 15, cfg.Router.LLM.RateLimit)
	assert.Equal(t, time.Minute, cfg.Router.LLM.RateWindow)
	assert.Equal(t, 30*24*time.Hour, cfg.Router.LLM.CacheTTL)
	assert.Equal(t, "gemini", cfg.Router.LLM.Provider)
	assert.NotEmpty(t, cfg.Router.Rules.High.Keywords, "compiled-in keyword lists apply by default")
}

func TestLoadRejectsBadMode(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("classifier.mode", "astrology")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRulesFromConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("rules.high.keywords", []string{"pšenica"})
	viper.Set("rules.low.keywords", []string{"pirinač"})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"pšenica"}, cfg.Router.Rules.High.Keywords)
	assert.Equal(t, []string{"pirinač"}, cfg.Router.Rules.Low.Keywords)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("FODMAP_TEST_DIR", "/tmp/fodmap")
	assert.Equal(t, "/tmp/fodmap/db", ExpandPath("$FODMAP_TEST_DIR/db"))
	assert.Equal(t, "", ExpandPath(""))
	assert.NotContains(t, ExpandPath("~/data"), "~")
}
