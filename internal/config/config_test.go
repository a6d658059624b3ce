package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.Inference.APIKey = "test-key"
	return cfg
}

func TestDefault_IsValidWithAPIKey(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.CaptureInterval())
	assert.Equal(t, 300*time.Second, cfg.ChunkLimit())
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, 2*time.Minute, cfg.AnalyzeTimeout())
	assert.Equal(t, 120, cfg.Capture.BufferCapacity)
	assert.Equal(t, 0.6, cfg.Validation.ConfidenceThreshold)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"JOBTRACE_CAPTURE_INTERVAL":     "5",
		"JOBTRACE_BUFFER_CAPACITY":      "10",
		"JOBTRACE_CHUNK_LIMIT":          "60",
		"JOBTRACE_AUTO_ANALYZE":         "true",
		"JOBTRACE_CONFIDENCE_THRESHOLD": "0.75",
		"JOBTRACE_PROVIDER":             "ollama",
		"GEMINI_API_KEY":                " from-gemini-var ",
		"OLLAMA_PORT":                   "11500",
		"DATABASE_URL":                  "postgres://localhost/jobs",
		"S3_BUCKET":                     "frames",
		"LOG_LEVEL":                     "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Capture.IntervalSeconds)
	assert.Equal(t, 10, cfg.Capture.BufferCapacity)
	assert.Equal(t, 60, cfg.Chunk.LimitSeconds)
	assert.True(t, cfg.Chunk.AutoAnalyze)
	assert.Equal(t, 0.75, cfg.Validation.ConfidenceThreshold)
	assert.Equal(t, ProviderOllama, cfg.Inference.Provider)
	assert.Equal(t, "from-gemini-var", cfg.Inference.APIKey)
	assert.Equal(t, 11500, cfg.Inference.OllamaPort)
	assert.Equal(t, "postgres://localhost/jobs", cfg.Sinks.PostgresURL)
	assert.Equal(t, "frames", cfg.Archive.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnv_GoogleKeyWins(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(envMap(map[string]string{
		"GOOGLE_API_KEY": "google",
		"GEMINI_API_KEY": "gemini",
	})))
	assert.Equal(t, "google", cfg.Inference.APIKey)
}

func TestApplyEnv_BadValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"JOBTRACE_BUFFER_CAPACITY":      "lots",
		"JOBTRACE_AUTO_ANALYZE":         "sometimes",
		"JOBTRACE_CONFIDENCE_THRESHOLD": "high",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "JOBTRACE_BUFFER_CAPACITY")
	assert.Contains(t, err.Error(), "JOBTRACE_AUTO_ANALYZE")
	assert.Contains(t, err.Error(), "JOBTRACE_CONFIDENCE_THRESHOLD")
	assert.Equal(t, 120, cfg.Capture.BufferCapacity, "bad values leave the previous setting")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.Inference.APIKey = "" }, "GOOGLE_API_KEY not set"},
		{"zero capacity", func(c *Config) { c.Capture.BufferCapacity = 0 }, "buffer_capacity"},
		{"threshold above one", func(c *Config) { c.Validation.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"unknown provider", func(c *Config) { c.Inference.Provider = "openai" }, "inference.provider"},
		{"half sheets config", func(c *Config) { c.Sinks.SheetsID = "abc" }, "set together"},
		{"archive without keys", func(c *Config) { c.Archive.Endpoint = "localhost:9000" }, "archive needs"},
		{"zero chunk limit", func(c *Config) { c.Chunk.LimitSeconds = 0 }, "chunk.limit_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_OllamaNeedsNoKey(t *testing.T) {
	cfg := Default()
	cfg.Inference.Provider = ProviderOllama
	assert.NoError(t, cfg.Validate())
}

func TestFillModel(t *testing.T) {
	cfg := Default()
	cfg.FillModel()
	assert.Equal(t, DefaultGeminiModel, cfg.Inference.Model)

	cfg = Default()
	cfg.Inference.Provider = ProviderOllama
	cfg.FillModel()
	assert.Equal(t, DefaultOllamaModel, cfg.Inference.Model)

	cfg.Inference.Model = "llava"
	cfg.FillModel()
	assert.Equal(t, "llava", cfg.Inference.Model)
}

func TestJSONSinkPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultJSONPath, cfg.JSONSinkPath(), "fallback when no sink is configured")

	cfg.Sinks.SQLitePath = "jobs.db"
	assert.Equal(t, "", cfg.JSONSinkPath())

	cfg.Sinks.JSONPath = "out.json"
	assert.Equal(t, "out.json", cfg.JSONSinkPath())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobtrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
capture:
  interval_seconds: 7
  buffer_capacity: 50
chunk:
  limit_seconds: 90
inference:
  provider: ollama
sinks:
  sqlite_path: jobs.db
`), 0644))
	t.Setenv("JOBTRACE_BUFFER_CAPACITY", "25")
	t.Setenv("JOBTRACE_MODEL", "")
	t.Setenv("JOBTRACE_PROVIDER", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Capture.IntervalSeconds)
	assert.Equal(t, 25, cfg.Capture.BufferCapacity, "environment overrides the file")
	assert.Equal(t, 90, cfg.Chunk.LimitSeconds)
	assert.Equal(t, ProviderOllama, cfg.Inference.Provider)
	assert.Equal(t, DefaultOllamaModel, cfg.Inference.Model)
	assert.Equal(t, "jobs.db", cfg.Sinks.SQLitePath)
	assert.Equal(t, 1280, cfg.Capture.MaxWidth, "unset keys keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture: [unclosed"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}
