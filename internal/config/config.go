// Package config loads jobtrace settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete jobtrace configuration
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Engine     EngineConfig     `yaml:"engine"`
	Validation ValidationConfig `yaml:"validation"`
	Inference  InferenceConfig  `yaml:"inference"`
	Sinks      SinksConfig      `yaml:"sinks"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Control    ControlConfig    `yaml:"control"`
	Log        LogConfig        `yaml:"log"`
}

type CaptureConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	BufferCapacity  int    `yaml:"buffer_capacity"`
	MaxWidth        int    `yaml:"max_width"`
	Display         string `yaml:"display"`
	SpoolDir        string `yaml:"spool_dir"` // empty keeps frames in memory
	FFmpegPath      string `yaml:"ffmpeg_path"`
}

type ChunkConfig struct {
	LimitSeconds int  `yaml:"limit_seconds"`
	AutoAnalyze  bool `yaml:"auto_analyze"`
}

type EngineConfig struct {
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
	AnalyzeTimeoutSeconds  int `yaml:"analyze_timeout_seconds"`
}

type ValidationConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

type InferenceConfig struct {
	Provider   string `yaml:"provider"` // gemini, ollama
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	OllamaURL  string `yaml:"ollama_url"`
	OllamaPort int    `yaml:"ollama_port"`
	Workers    int    `yaml:"workers"`
}

type SinksConfig struct {
	JSONPath          string `yaml:"json_path"`
	SQLitePath        string `yaml:"sqlite_path"`
	PostgresURL       string `yaml:"postgres_url"`
	SheetsID          string `yaml:"sheets_id"`
	SheetsCredentials string `yaml:"sheets_credentials"`
}

type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"` // empty disables archiving
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type EmbeddingsConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Workers    int    `yaml:"workers"`
	CacheSize  int    `yaml:"cache_size"`
}

type ControlConfig struct {
	Listen  string `yaml:"listen"` // empty disables the HTTP server
	Console bool   `yaml:"console"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	DefaultJSONPath    = "jobtrace_actions.json"
	DefaultOllamaModel = "llama3.2-vision:11b"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Default returns the built-in configuration.
func Default() *Config {
	display := os.Getenv("DISPLAY")
	if display == "" {
		display = ":0.0"
	}
	return &Config{
		Capture: CaptureConfig{
			IntervalSeconds: 3,
			BufferCapacity:  120,
			MaxWidth:        1280,
			Display:         display,
			FFmpegPath:      "ffmpeg",
		},
		Chunk:      ChunkConfig{LimitSeconds: 300},
		Engine:     EngineConfig{ShutdownTimeoutSeconds: 5, AnalyzeTimeoutSeconds: 120},
		Validation: ValidationConfig{ConfidenceThreshold: 0.6},
		Inference: InferenceConfig{
			Provider:   ProviderGemini,
			OllamaURL:  "http://localhost",
			OllamaPort: 11434,
			Workers:    4,
		},
		Archive: ArchiveConfig{Region: "us-east-1", Bucket: "jobtrace-frames"},
		Embeddings: EmbeddingsConfig{
			Model:      "text-embedding-004",
			Dimensions: 768,
			Workers:    2,
			CacheSize:  512,
		},
		Control: ControlConfig{Listen: "127.0.0.1:8765", Console: true},
		Log:     LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.FillModel()
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		if v, ok := firstSet(lookup, keys...); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(dst *int, key string) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v))
				return
			}
			*dst = n
		}
	}
	flag := func(dst *bool, key string) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, v))
				return
			}
			*dst = b
		}
	}

	num(&c.Capture.IntervalSeconds, "JOBTRACE_CAPTURE_INTERVAL")
	num(&c.Capture.BufferCapacity, "JOBTRACE_BUFFER_CAPACITY")
	num(&c.Capture.MaxWidth, "FRAME_MAX_WIDTH")
	str(&c.Capture.SpoolDir, "JOBTRACE_SPOOL_DIR")
	str(&c.Capture.FFmpegPath, "JOBTRACE_FFMPEG")
	num(&c.Chunk.LimitSeconds, "JOBTRACE_CHUNK_LIMIT")
	flag(&c.Chunk.AutoAnalyze, "JOBTRACE_AUTO_ANALYZE")

	if v, ok := lookup("JOBTRACE_CONFIDENCE_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: JOBTRACE_CONFIDENCE_THRESHOLD=%q is not a number", ErrInvalid, v))
		} else {
			c.Validation.ConfidenceThreshold = f
		}
	}

	str(&c.Inference.Provider, "JOBTRACE_PROVIDER")
	str(&c.Inference.Model, "JOBTRACE_MODEL")
	str(&c.Inference.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	str(&c.Inference.OllamaURL, "OLLAMA_URL")
	num(&c.Inference.OllamaPort, "OLLAMA_PORT")

	str(&c.Sinks.JSONPath, "JOBTRACE_JSON_PATH")
	str(&c.Sinks.SQLitePath, "JOBTRACE_SQLITE_PATH")
	str(&c.Sinks.PostgresURL, "DATABASE_URL")
	str(&c.Sinks.SheetsID, "GOOGLE_SHEETS_ID")
	str(&c.Sinks.SheetsCredentials, "GOOGLE_SERVICE_ACCOUNT_FILE")

	str(&c.Archive.Endpoint, "S3_ENDPOINT")
	str(&c.Archive.AccessKey, "S3_ACCESS_KEY")
	str(&c.Archive.SecretKey, "S3_SECRET_KEY")
	str(&c.Archive.Bucket, "S3_BUCKET")

	str(&c.Control.Listen, "JOBTRACE_LISTEN")
	str(&c.Log.Level, "LOG_LEVEL")

	return errors.Join(errs...)
}

func firstSet(lookup lookupFunc, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// FillModel picks the provider's default model when none is set.
func (c *Config) FillModel() {
	if c.Inference.Model != "" {
		return
	}
	switch c.Inference.Provider {
	case ProviderOllama:
		c.Inference.Model = DefaultOllamaModel
	default:
		c.Inference.Model = DefaultGeminiModel
	}
}

// Validate reports every problem at once, each wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Capture.IntervalSeconds <= 0 {
		bad("capture.interval_seconds must be positive, got %d", c.Capture.IntervalSeconds)
	}
	if c.Capture.BufferCapacity <= 0 {
		bad("capture.buffer_capacity must be positive, got %d", c.Capture.BufferCapacity)
	}
	if c.Capture.MaxWidth < 0 {
		bad("capture.max_width must not be negative, got %d", c.Capture.MaxWidth)
	}
	if c.Chunk.LimitSeconds <= 0 {
		bad("chunk.limit_seconds must be positive, got %d", c.Chunk.LimitSeconds)
	}
	if c.Engine.ShutdownTimeoutSeconds <= 0 {
		bad("engine.shutdown_timeout_seconds must be positive, got %d", c.Engine.ShutdownTimeoutSeconds)
	}
	if c.Engine.AnalyzeTimeoutSeconds <= 0 {
		bad("engine.analyze_timeout_seconds must be positive, got %d", c.Engine.AnalyzeTimeoutSeconds)
	}
	if t := c.Validation.ConfidenceThreshold; t < 0 || t > 1 {
		bad("validation.confidence_threshold must be within [0,1], got %v", t)
	}
	switch c.Inference.Provider {
	case ProviderGemini:
		if strings.TrimSpace(c.Inference.APIKey) == "" {
			bad("GOOGLE_API_KEY not set in environment")
		}
	case ProviderOllama:
		if c.Inference.OllamaPort <= 0 {
			bad("inference.ollama_port must be positive, got %d", c.Inference.OllamaPort)
		}
	default:
		bad("inference.provider must be %q or %q, got %q", ProviderGemini, ProviderOllama, c.Inference.Provider)
	}
	if (c.Sinks.SheetsID == "") != (c.Sinks.SheetsCredentials == "") {
		bad("sinks.sheets_id and sinks.sheets_credentials must be set together")
	}
	if c.Archive.Endpoint != "" && (c.Archive.AccessKey == "" || c.Archive.SecretKey == "" || c.Archive.Bucket == "") {
		bad("archive needs access_key, secret_key and bucket when endpoint is set")
	}
	if c.Embeddings.Dimensions <= 0 {
		bad("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	return errors.Join(errs...)
}

// JSONSinkPath returns the JSON sink path, defaulting it when no sink at all
// is configured. An empty result means the JSON sink is not used.
func (c *Config) JSONSinkPath() string {
	if c.Sinks.JSONPath != "" {
		return c.Sinks.JSONPath
	}
	if c.Sinks.SQLitePath == "" && c.Sinks.PostgresURL == "" && c.Sinks.SheetsID == "" {
		return DefaultJSONPath
	}
	return ""
}

func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Capture.IntervalSeconds) * time.Second
}

func (c *Config) ChunkLimit() time.Duration {
	return time.Duration(c.Chunk.LimitSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Engine.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) AnalyzeTimeout() time.Duration {
	return time.Duration(c.Engine.AnalyzeTimeoutSeconds) * time.Second
}
