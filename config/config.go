// Package config provides configuration loading and management for the
// sheet chatbot service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Document DocumentConfig `yaml:"document"`
	Model    ModelConfig    `yaml:"model"`
	Search   SearchConfig   `yaml:"search"`
	Registry RegistryConfig `yaml:"registry"`
	Prompt   PromptConfig   `yaml:"prompt"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `yaml:"addr"`
	// AllowedOrigins lists CORS origins permitted to call the API.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SheetsConfig configures the default tabular sources.
type SheetsConfig struct {
	// SpreadsheetID is the Google Sheets document to export from.
	SpreadsheetID string `yaml:"spreadsheet_id"`
	// DefaultGID is the sheet tab used when no topic keyword matches.
	DefaultGID string `yaml:"default_gid"`
	// DeviceGID is the tab holding the tablet/device survey.
	DeviceGID string `yaml:"device_gid"`
	// ParentGID is the tab holding the parent/guardian survey.
	ParentGID string `yaml:"parent_gid"`
	// FetchTimeout bounds a single export fetch (default 10s).
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// LocalXLSX optionally maps sheet names to local .xlsx fixture
	// files served through the same table-fetch contract.
	LocalXLSX map[string]string `yaml:"local_xlsx"`
}

// DocumentConfig configures the interview transcript source.
type DocumentConfig struct {
	// DocumentID is the Google Docs document to export from.
	DocumentID string `yaml:"document_id"`
	// APIKey enables the credentialed fallback path when the direct
	// export is denied. Empty disables the second tier.
	APIKey string `yaml:"api_key"`
	// FetchTimeout bounds a single export fetch (default 10s).
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// ModelConfig configures the LLM completion service.
type ModelConfig struct {
	// Provider selects the registered provider ("anthropic", "openai").
	Provider string `yaml:"provider"`
	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`
	// Endpoint overrides the provider's default base URL.
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`
	// MaxTokens limits completion length.
	MaxTokens int `yaml:"max_tokens"`
	// Timeout is the maximum time to wait for a completion.
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig configures the optional web search collaborator.
type SearchConfig struct {
	// APIKey is the Custom Search API key. Empty disables search.
	APIKey string `yaml:"api_key"`
	// EngineID is the Custom Search engine identifier.
	EngineID string `yaml:"engine_id"`
	// ResultCount caps results requested per question.
	ResultCount int `yaml:"result_count"`
}

// RegistryConfig configures the persisted source registry.
type RegistryConfig struct {
	// SourcesPath is the JSON file holding custom source descriptors.
	SourcesPath string `yaml:"sources_path"`
	// TitlesPath is the JSON file mapping default GIDs to renamed titles.
	TitlesPath string `yaml:"titles_path"`
	// Watch enables reloading when the files change on disk.
	Watch bool `yaml:"watch"`
}

// PromptConfig configures context assembly limits.
type PromptConfig struct {
	// SampleCap is the maximum raw records rendered in the prompt.
	SampleCap int `yaml:"sample_cap"`
	// MaxChars is the total character ceiling for the assembled context.
	MaxChars int `yaml:"max_chars"`
	// SearchResultCap bounds the web-search section.
	SearchResultCap int `yaml:"search_result_cap"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"*"},
		},
		Sheets: SheetsConfig{
			FetchTimeout: 10 * time.Second,
		},
		Document: DocumentConfig{
			FetchTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Provider:    "anthropic",
			Model:       "claude-3-5-sonnet-20241022",
			Temperature: 0.7,
			MaxTokens:   1000,
			Timeout:     2 * time.Minute,
		},
		Search: SearchConfig{
			ResultCount: 5,
		},
		Registry: RegistryConfig{
			SourcesPath: "data/custom_sources.json",
			TitlesPath:  "data/sheet_titles.json",
			Watch:       true,
		},
		Prompt: PromptConfig{
			SampleCap:       50,
			MaxChars:        60000,
			SearchResultCap: 5,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Sheets.SpreadsheetID == "" && len(c.Sheets.LocalXLSX) == 0 {
		return fmt.Errorf("sheets.spreadsheet_id or sheets.local_xlsx is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Prompt.SampleCap <= 0 {
		return fmt.Errorf("prompt.sample_cap must be positive")
	}
	if c.Prompt.MaxChars <= 0 {
		return fmt.Errorf("prompt.max_chars must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if len(other.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = other.Server.AllowedOrigins
	}

	if other.Sheets.SpreadsheetID != "" {
		c.Sheets.SpreadsheetID = other.Sheets.SpreadsheetID
	}
	if other.Sheets.DefaultGID != "" {
		c.Sheets.DefaultGID = other.Sheets.DefaultGID
	}
	if other.Sheets.DeviceGID != "" {
		c.Sheets.DeviceGID = other.Sheets.DeviceGID
	}
	if other.Sheets.ParentGID != "" {
		c.Sheets.ParentGID = other.Sheets.ParentGID
	}
	if other.Sheets.FetchTimeout != 0 {
		c.Sheets.FetchTimeout = other.Sheets.FetchTimeout
	}
	if len(other.Sheets.LocalXLSX) > 0 {
		c.Sheets.LocalXLSX = other.Sheets.LocalXLSX
	}

	if other.Document.DocumentID != "" {
		c.Document.DocumentID = other.Document.DocumentID
	}
	if other.Document.APIKey != "" {
		c.Document.APIKey = other.Document.APIKey
	}
	if other.Document.FetchTimeout != 0 {
		c.Document.FetchTimeout = other.Document.FetchTimeout
	}

	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Model != "" {
		c.Model.Model = other.Model.Model
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.MaxTokens != 0 {
		c.Model.MaxTokens = other.Model.MaxTokens
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	if other.Search.APIKey != "" {
		c.Search.APIKey = other.Search.APIKey
	}
	if other.Search.EngineID != "" {
		c.Search.EngineID = other.Search.EngineID
	}
	if other.Search.ResultCount != 0 {
		c.Search.ResultCount = other.Search.ResultCount
	}

	if other.Registry.SourcesPath != "" {
		c.Registry.SourcesPath = other.Registry.SourcesPath
	}
	if other.Registry.TitlesPath != "" {
		c.Registry.TitlesPath = other.Registry.TitlesPath
	}

	if other.Prompt.SampleCap != 0 {
		c.Prompt.SampleCap = other.Prompt.SampleCap
	}
	if other.Prompt.MaxChars != 0 {
		c.Prompt.MaxChars = other.Prompt.MaxChars
	}
	if other.Prompt.SearchResultCap != 0 {
		c.Prompt.SearchResultCap = other.Prompt.SearchResultCap
	}
}
