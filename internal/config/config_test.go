// Package config_test tests the configuration loading for the voice client.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/voice-client/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[api]
base_url = "http://voice.internal:9000"
timeout_seconds = 45
user_agent = "voicectl-test"

[batch]
workers = 3
rate_limit = 10
poll_interval_ms = 250

[nats]
url = "nats://127.0.0.1:4222"
text_processed_subject = "text.processed"
audio_object_store_bucket = "AUDIO_FILES"
text_object_store_bucket = "TEXT_FILES"

[paths]
base_logs_dir = "/var/log/voice"
output_dir = "/srv/voice/out"
`

	cfg, err := config.Parse([]byte(tomlData))
	require.NoError(t, err)

	assert.Equal(t, "http://voice.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout())
	assert.Equal(t, "voicectl-test", cfg.API.UserAgent)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, 10, cfg.Batch.RateLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.PollInterval())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "text.processed", cfg.NATS.TextProcessedSubject)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "TEXT_FILES", cfg.NATS.TextObjectStoreBucket)
	assert.Equal(t, "/var/log/voice", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/srv/voice/out", cfg.Paths.OutputDir)
}

func TestParseConfig_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, config.DefaultUserAgent, cfg.API.UserAgent)
	assert.Equal(t, config.DefaultTimeoutSeconds, cfg.API.TimeoutSeconds)
	assert.Equal(t, config.DefaultWorkers, cfg.Batch.Workers)
	assert.Equal(t, config.DefaultRateLimit, cfg.Batch.RateLimit)
	assert.Equal(t, config.DefaultOutputDir, cfg.Paths.OutputDir)
	assert.Equal(t, config.DefaultTextSubject, cfg.NATS.TextProcessedSubject)
}

func TestParseConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "relative base url",
			data:    "[api]\nbase_url = \"localhost:8000\"\n",
			wantErr: config.ErrInvalidBaseURL,
		},
		{
			name:    "negative timeout",
			data:    "[api]\ntimeout_seconds = -1\n",
			wantErr: config.ErrInvalidTimeout,
		},
		{
			name:    "negative workers",
			data:    "[batch]\nworkers = -2\n",
			wantErr: config.ErrInvalidWorkers,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Parse([]byte(testCase.data))
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}

	_, err := config.Parse([]byte("[api\nbroken"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nbase_url = \"https://voice.example\"\n"), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://voice.example", cfg.API.BaseURL)

	_, err = config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BaseLogsDir = filepath.Join(root, "logs")
	cfg.Paths.OutputDir = filepath.Join(root, "out", "audio")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.Paths.BaseLogsDir)
	assert.DirExists(t, cfg.Paths.OutputDir)
}
