package config

// #region imports
import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region config-types

// Config holds every tunable for the agent. Zero values are filled in by
// Default(); Load applies the YAML file and environment on top.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Engine    EngineConfig    `yaml:"engine"`

	MaxRepairs int    `yaml:"max_repairs"`
	CorpusDir  string `yaml:"corpus_dir"`
	SchemaPath string `yaml:"schema_path"`
	TraceDB    string `yaml:"trace_db"`

	// Overrides is the ordered keyword→intent table. First match wins.
	Overrides []OverrideRule `yaml:"overrides"`
}

// LLMConfig configures the completion endpoint.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// RetrievalConfig holds the lexical index knobs.
type RetrievalConfig struct {
	TopK         int     `yaml:"top_k"`
	MinRelevance float64 `yaml:"min_relevance"`
	K1           float64 `yaml:"k1"`
	B            float64 `yaml:"b"`
	NameBoost    float64 `yaml:"name_boost"`
}

// EngineConfig configures the read-only SQLite executor.
type EngineConfig struct {
	Path           string `yaml:"path"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRows        int    `yaml:"max_rows"`
}

// OverrideRule maps a normalized keyword to a fixed routing intent.
type OverrideRule struct {
	Keyword string `yaml:"keyword"`
	Intent  string `yaml:"intent"`
}

// #endregion

// #region defaults

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:        "http://localhost:11434/v1",
			APIKey:         "ollama",
			Model:          "phi3.5:3.8b",
			TimeoutSeconds: 60,
			MaxTokens:      1000,
		},
		Retrieval: RetrievalConfig{
			TopK:         3,
			MinRelevance: 0.0,
			K1:           1.5,
			B:            0.75,
			NameBoost:    5.0,
		},
		Engine: EngineConfig{
			Path:           "data/northwind.sqlite",
			TimeoutSeconds: 15,
			MaxRows:        1000,
		},
		MaxRepairs: 2,
		CorpusDir:  "docs",
		SchemaPath: "config/schema.yaml",
		TraceDB:    "storewise_trace.db",
		Overrides: []OverrideRule{
			{Keyword: "policy", Intent: "rag"},
			{Keyword: "calendar", Intent: "hybrid"},
		},
	}
}

// #endregion

// #region load

// Load reads the YAML config at path and applies environment overrides.
// A missing file is not an error: defaults apply. A malformed file is fatal.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets the environment override the endpoint and model, which vary
// per deployment more often than the rest of the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STOREWISE_LLM_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("STOREWISE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("STOREWISE_LLM_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("STOREWISE_DB"); v != "" {
		cfg.Engine.Path = v
	}
}

// #endregion

// #region validate

// Validate rejects configurations that would misbehave at runtime.
func (c Config) Validate() error {
	if c.MaxRepairs < 0 {
		return fmt.Errorf("max_repairs must be >= 0, got %d", c.MaxRepairs)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be > 0, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.K1 <= 0 || c.Retrieval.B < 0 || c.Retrieval.B > 1 {
		return fmt.Errorf("retrieval k1 must be > 0 and b in [0,1], got k1=%v b=%v",
			c.Retrieval.K1, c.Retrieval.B)
	}
	for i, r := range c.Overrides {
		switch r.Intent {
		case "sql", "rag", "hybrid":
		default:
			return fmt.Errorf("override %d: unknown intent %q", i, r.Intent)
		}
		if r.Keyword == "" {
			return fmt.Errorf("override %d: empty keyword", i)
		}
	}
	return nil
}

// #endregion

// #region durations

// InferenceTimeout returns the per-call completion timeout.
func (c Config) InferenceTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// ExecutionTimeout returns the per-call SQL execution timeout.
func (c Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

// #endregion
