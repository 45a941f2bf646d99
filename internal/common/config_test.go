package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "chromedp", cfg.Render.Engine)
	assert.Equal(t, 15*time.Second, cfg.Render.DefaultTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Render.PollInterval.Std())
	assert.Equal(t, 10, cfg.Render.MaxPollAttempts)
	assert.Equal(t, 3, cfg.Render.MinParagraphs)
	assert.Equal(t, 500, cfg.Render.MinTotalText)
	assert.Equal(t, 50, cfg.Render.MinParagraphLength)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	first := writeConfig(t, "base.toml", `
[server]
port = 9000

[render]
engine = "static"
poll_interval = "250ms"
`)
	second := writeConfig(t, "override.toml", `
[server]
port = 9100
`)

	cfg, err := LoadFromFiles(first, second)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "static", cfg.Render.Engine)
	assert.Equal(t, 250*time.Millisecond, cfg.Render.PollInterval.Std())
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[render]
engine = "static"
`)
	t.Setenv("PAGERENDER_RENDER_ENGINE", "chromedp")
	t.Setenv("PAGERENDER_SERVER_PORT", "9200")
	t.Setenv("PAGERENDER_LOG_OUTPUT", "stdout, file ,")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "chromedp", cfg.Render.Engine)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
}

func TestLoadFromFiles_RejectsUnknownEngine(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[render]
engine = "webkit"
`)
	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestLoadFromFiles_RejectsPollAttemptsAboveCap(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[render]
max_poll_attempts = 11
`)
	_, err := LoadFromFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_poll_attempts")
}

func TestLoadFromFiles_BadDuration(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[render]
default_timeout = "soon"
`)
	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8087, cfg.Server.Port)

	ApplyFlagOverrides(cfg, 9999, "0.0.0.0")
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}
