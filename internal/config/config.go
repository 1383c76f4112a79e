package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// SummarizerMode selects the distillation backend.
const (
	SummarizerChat      = "chat"
	SummarizerHeuristic = "heuristic"
)

// Config holds application configuration.
type Config struct {
	// CreatedBy is the default requester recorded on new bundles.
	CreatedBy string `json:"created_by,omitempty"`

	// SummarizerMode is "chat" (HTTP chat-completion endpoint) or
	// "heuristic" (local extractive fallback). Defaults to heuristic when
	// no endpoint is configured.
	SummarizerMode string `json:"summarizer_mode,omitempty"`

	// SummarizerURL is the base URL of an OpenAI-compatible chat API.
	SummarizerURL string `json:"summarizer_url,omitempty"`

	// SummarizerModel names the chat model used for distillation.
	SummarizerModel string `json:"summarizer_model,omitempty"`

	// SummarizerAPIKeyEnv names the environment variable holding the API
	// key. The key itself never lives in config.json.
	SummarizerAPIKeyEnv string `json:"summarizer_api_key_env,omitempty"`

	// SummarizerTimeoutSecs bounds each distillation call. 0 means the
	// default (30s).
	SummarizerTimeoutSecs int `json:"summarizer_timeout_secs,omitempty"`

	// SummarizerConcurrency bounds concurrent distillation calls per
	// request. 0 means the default (4).
	SummarizerConcurrency int `json:"summarizer_concurrency,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from
	// registration. Unknown tool names are ignored with a warning.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SummarizerMode:        SummarizerHeuristic,
		SummarizerTimeoutSecs: 30,
		SummarizerConcurrency: 4,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.dossier.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are concatenated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.CreatedBy = pick(overlay.CreatedBy, base.CreatedBy)
	result.SummarizerMode = pick(overlay.SummarizerMode, base.SummarizerMode)
	result.SummarizerURL = pick(overlay.SummarizerURL, base.SummarizerURL)
	result.SummarizerModel = pick(overlay.SummarizerModel, base.SummarizerModel)
	result.SummarizerAPIKeyEnv = pick(overlay.SummarizerAPIKeyEnv, base.SummarizerAPIKeyEnv)

	result.SummarizerTimeoutSecs = pickInt(overlay.SummarizerTimeoutSecs, base.SummarizerTimeoutSecs)
	result.SummarizerConcurrency = pickInt(overlay.SummarizerConcurrency, base.SummarizerConcurrency)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.DisabledTools = append(append([]string(nil), base.DisabledTools...), overlay.DisabledTools...)
	if len(result.DisabledTools) == 0 {
		result.DisabledTools = nil
	}

	return result
}

func pick(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}
