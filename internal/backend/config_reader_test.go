package backend

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) string {
	t.Helper()
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	for _, k := range []string{"TALENTVIBE_SERVER", "TALENTVIBE_DROP_DIR", "NATS_URL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return state
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	state := clearConfigEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"), "talentvibe")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.Server.BaseURL)
	assert.Equal(t, 600*time.Second, cfg.Submit.Timeout)
	assert.Equal(t, 2000*time.Millisecond, cfg.Submit.RedirectDelay)
	assert.Equal(t, ChannelKindSocketIO, cfg.Channel.Kind)
	assert.Equal(t, JobFilterStrict, cfg.Channel.JobFilter)
	assert.Equal(t, DefaultNATSSubject, cfg.Channel.NATSSubject)
	assert.Equal(t, DefaultExtensions, cfg.Files.Extensions)
	assert.Empty(t, cfg.Files.DropDir)
	assert.Equal(t, filepath.Join(state, "talentvibe", "tui.log"), cfg.Log.File)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
base_url = "http://analysis.internal:8080"

[submit]
timeout = "90s"
redirect_delay = "500ms"

[channel]
kind = "nats"
nats_subject = "jobs.progress"
job_filter = "loose"

[files]
drop_dir = "/tmp/drop"
extensions = [".pdf"]

[log]
file = "/tmp/tv.log"
level = "debug"

[metrics]
addr = ":9102"
`), 0o644))
	t.Setenv("TALENTVIBE_SERVER", "https://override.example.com")

	cfg, err := LoadConfig(path, "talentvibe")
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Submit.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Submit.RedirectDelay)
	assert.Equal(t, ChannelKindNATS, cfg.Channel.Kind)
	assert.Equal(t, "jobs.progress", cfg.Channel.NATSSubject)
	assert.Equal(t, DefaultNATSURL, cfg.Channel.NATSURL)
	assert.Equal(t, JobFilterLoose, cfg.Channel.JobFilter)
	assert.Equal(t, "/tmp/drop", cfg.Files.DropDir)
	assert.Equal(t, []string{".pdf"}, cfg.Files.Extensions)
	assert.Equal(t, "/tmp/tv.log", cfg.Log.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	clearConfigEnv(t)
	tests := map[string]string{
		"bad duration": "[submit]\ntimeout = \"soon\"\n",
		"bad channel":  "[channel]\nkind = \"carrier-pigeon\"\n",
		"bad filter":   "[channel]\njob_filter = \"fuzzy\"\n",
		"bad url":      "[server]\nbase_url = \"localhost:5000\"\n",
		"bad toml":     "[server\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadConfig(path, "talentvibe")
			assert.Error(t, err)
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("TALENTVIBE_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	assert.Equal(t, "/cfg/talentvibe/config.toml", DefaultConfigPath("talentvibe"))

	t.Setenv("TALENTVIBE_CONFIG", "/elsewhere.toml")
	assert.Equal(t, "/elsewhere.toml", DefaultConfigPath("talentvibe"))
}
