// Package config loads the agent run configuration from a YAML or JSON file
// and applies environment overrides. A zero-value file (or no file at all)
// yields a working OpenAI-backed setup.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	BaseURL          string            `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Path             string            `json:"path,omitempty" yaml:"path,omitempty"`
	APIKeyEnv        string            `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	RequestTimeoutMS int               `json:"request_timeout_ms,omitempty" yaml:"request_timeout_ms,omitempty"`
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// APIKey resolves the provider key from the configured environment variable.
func (p ProviderConfig) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

func (p ProviderConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutMS) * time.Millisecond
}

type AgentConfig struct {
	Model               string `json:"model,omitempty" yaml:"model,omitempty"`
	MaxToolIterations   int    `json:"max_tool_iterations,omitempty" yaml:"max_tool_iterations,omitempty"`
	LoopDetectionWindow int    `json:"loop_detection_window,omitempty" yaml:"loop_detection_window,omitempty"`
}

type ArtifactsConfig struct {
	ExcludeGlobs []string `json:"exclude_globs,omitempty" yaml:"exclude_globs,omitempty"`
}

type DataConfig struct {
	GeneIndexPath string `json:"gene_index_path,omitempty" yaml:"gene_index_path,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

type Config struct {
	Version     int             `json:"version" yaml:"version"`
	OutputsRoot string          `json:"outputs_root,omitempty" yaml:"outputs_root,omitempty"`
	Provider    ProviderConfig  `json:"provider,omitempty" yaml:"provider,omitempty"`
	Agent       AgentConfig     `json:"agent,omitempty" yaml:"agent,omitempty"`
	Artifacts   ArtifactsConfig `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Data        DataConfig      `json:"data,omitempty" yaml:"data,omitempty"`
	Server      ServerConfig    `json:"server,omitempty" yaml:"server,omitempty"`
}

// Load reads path (YAML unless the extension is .json), applies defaults,
// environment overrides, and validation. An empty path returns the default
// configuration with only the environment applied.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			if err := decodeJSONStrict(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		default:
			if err := decodeYAMLStrict(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeJSONStrict(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("json: multiple top-level values are not allowed")
		}
		return err
	}
	return nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.OutputsRoot) == "" {
		cfg.OutputsRoot = "outputs"
	}
	if strings.TrimSpace(cfg.Provider.Name) == "" {
		cfg.Provider.Name = "openai"
	}
	if strings.TrimSpace(cfg.Provider.BaseURL) == "" {
		cfg.Provider.BaseURL = "https://api.openai.com"
	}
	if strings.TrimSpace(cfg.Provider.Path) == "" {
		cfg.Provider.Path = "/v1/chat/completions"
	}
	if strings.TrimSpace(cfg.Provider.APIKeyEnv) == "" {
		cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Provider.RequestTimeoutMS <= 0 {
		cfg.Provider.RequestTimeoutMS = 120000
	}
	if strings.TrimSpace(cfg.Agent.Model) == "" {
		cfg.Agent.Model = "gpt-4o"
	}
	if cfg.Agent.MaxToolIterations <= 0 {
		cfg.Agent.MaxToolIterations = 30
	}
	if cfg.Agent.LoopDetectionWindow <= 0 {
		cfg.Agent.LoopDetectionWindow = 5
	}
	if strings.TrimSpace(cfg.Data.GeneIndexPath) == "" {
		cfg.Data.GeneIndexPath = filepath.Join("data", "genes.tsv")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AGENT_OUTPUT_DIR")); v != "" {
		cfg.OutputsRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		cfg.Agent.Model = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.Agent.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MAX_TOOL_ITERATIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxToolIterations = n
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d (want 1)", cfg.Version)
	}
	if !strings.HasPrefix(cfg.Provider.BaseURL, "http://") && !strings.HasPrefix(cfg.Provider.BaseURL, "https://") {
		return fmt.Errorf("provider base_url must be http(s): %q", cfg.Provider.BaseURL)
	}
	if !strings.HasPrefix(cfg.Provider.Path, "/") {
		return fmt.Errorf("provider path must start with /: %q", cfg.Provider.Path)
	}
	for _, g := range cfg.Artifacts.ExcludeGlobs {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("artifacts exclude_globs contains an empty pattern")
		}
	}
	return nil
}
