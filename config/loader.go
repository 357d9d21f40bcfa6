package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	// FileEnv overrides the config file location.
	FileEnv = "SHEETCHAT_CONFIG"
	// DefaultFile is the config file name looked up in the working directory.
	DefaultFile = "sheetchat.yaml"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. YAML file (SHEETCHAT_CONFIG or ./sheetchat.yaml)
// 3. Environment variables (credentials and addresses)
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	path := os.Getenv(FileEnv)
	if path == "" {
		path = DefaultFile
	}

	if fileConfig, err := LoadFromFile(path); err == nil {
		l.logger.Debug("Loaded config file", slog.String("path", path))
		config.Merge(fileConfig)
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load config file",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overlays environment variables onto the config. Credentials
// live in the environment rather than on disk.
func (l *Loader) applyEnv(c *Config) {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		c.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv("GOOGLE_DOC_ID"); v != "" {
		c.Document.DocumentID = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Document.APIKey = v
	}
	if v := os.Getenv("GOOGLE_SEARCH_API_KEY"); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv("GOOGLE_SEARCH_ENGINE_ID"); v != "" {
		c.Search.EngineID = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Model.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Model.Model = v
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Model.Timeout = d
		} else {
			l.logger.Warn("Invalid LLM_TIMEOUT, keeping default",
				slog.String("value", v))
		}
	}
	if v := os.Getenv("PROMPT_SAMPLE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Prompt.SampleCap = n
		}
	}
}
