package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BackendConfig holds connection settings for the local model server.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	GenerateModel  string `yaml:"generate_model"`
	ScriptModel    string `yaml:"script_model"`
	EmbedModel     string `yaml:"embed_model"`
	EmbedProvider  string `yaml:"embed_provider"` // "ollama" or "hash"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StoreConfig locates the durable knowledge base and outcome log.
type StoreConfig struct {
	KBPath       string `yaml:"kb_path"`
	OutcomesPath string `yaml:"outcomes_path"`
	Dimension    int    `yaml:"dimension"`
}

// ChunkingConfig controls document splitting.
type ChunkingConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// RetrievalConfig controls context retrieval for generation.
type RetrievalConfig struct {
	TopK               int `yaml:"top_k"`
	ContextBudgetChars int `yaml:"context_budget_chars"`
}

// GenerationConfig controls the validate/repair loop and case shaping.
type GenerationConfig struct {
	MaxRepairs int    `yaml:"max_repairs"`
	CaseCount  int    `yaml:"case_count"`
	Level      string `yaml:"level"`     // smoke, regression, full
	CaseType   string `yaml:"case_type"` // functional, negative, boundary
}

// ExecuteConfig controls script execution.
type ExecuteConfig struct {
	Tool           string `yaml:"tool"` // selenium, playwright, restassured
	Target         string `yaml:"target"`
	Headless       bool   `yaml:"headless"`
	Workers        int    `yaml:"workers"`
	Interpreter    string `yaml:"interpreter"`
	ScreenshotDir  string `yaml:"screenshot_dir"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PathsConfig locates generated artifact directories.
type PathsConfig struct {
	CasesDir   string `yaml:"cases_dir"`
	ScriptsDir string `yaml:"scripts_dir"`
	ReportsDir string `yaml:"reports_dir"`
}

// GitConfig controls version-control integration for generated artifacts.
type GitConfig struct {
	AutoCommit      bool   `yaml:"auto_commit"`
	AutoPush        bool   `yaml:"auto_push"`
	MessageTemplate string `yaml:"message_template"`
}

// Config is the root configuration.
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Store      StoreConfig      `yaml:"store"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Execute    ExecuteConfig    `yaml:"execute"`
	Paths      PathsConfig      `yaml:"paths"`
	Git        GitConfig        `yaml:"git"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:11434",
			GenerateModel:  "llama3",
			ScriptModel:    "codellama",
			EmbedModel:     "nomic-embed-text",
			EmbedProvider:  "ollama",
			TimeoutSeconds: 120,
		},
		Store: StoreConfig{
			KBPath:       ".testforge/kb.db",
			OutcomesPath: ".testforge/outcomes.db",
			Dimension:    768,
		},
		Chunking: ChunkingConfig{
			MaxChars:     1000,
			OverlapChars: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:               5,
			ContextBudgetChars: 4000,
		},
		Generation: GenerationConfig{
			MaxRepairs: 2,
			CaseCount:  5,
			Level:      "regression",
			CaseType:   "functional",
		},
		Execute: ExecuteConfig{
			Tool:           "selenium",
			Headless:       true,
			Workers:        1,
			Interpreter:    "python3",
			ScreenshotDir:  ".testforge/screenshots",
			TimeoutSeconds: 60,
		},
		Paths: PathsConfig{
			CasesDir:   ".testforge/cases",
			ScriptsDir: ".testforge/scripts",
			ReportsDir: ".testforge/reports",
		},
		Git: GitConfig{
			AutoCommit:      false,
			AutoPush:        false,
			MessageTemplate: "test: update generated artifacts ({passed}/{total} passed)",
		},
	}
}

// Load reads a config file and merges it over the defaults.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects structurally broken configuration before any component
// is opened. A bad config aborts the whole operation.
func (c *Config) Validate() error {
	if c.Chunking.MaxChars <= 0 {
		return fmt.Errorf("chunking.max_chars must be > 0, got %d", c.Chunking.MaxChars)
	}
	if c.Chunking.OverlapChars < 0 || c.Chunking.OverlapChars >= c.Chunking.MaxChars {
		return fmt.Errorf("chunking.overlap_chars must be in [0, max_chars), got %d", c.Chunking.OverlapChars)
	}
	if c.Store.Dimension <= 0 {
		return fmt.Errorf("store.dimension must be > 0, got %d", c.Store.Dimension)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be > 0, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.ContextBudgetChars < 0 {
		return fmt.Errorf("retrieval.context_budget_chars must be >= 0, got %d", c.Retrieval.ContextBudgetChars)
	}
	if c.Generation.MaxRepairs < 0 {
		return fmt.Errorf("generation.max_repairs must be >= 0, got %d", c.Generation.MaxRepairs)
	}
	if c.Generation.CaseCount <= 0 {
		return fmt.Errorf("generation.case_count must be > 0, got %d", c.Generation.CaseCount)
	}
	if c.Execute.Workers < 1 {
		return fmt.Errorf("execute.workers must be >= 1, got %d", c.Execute.Workers)
	}
	if c.Execute.TimeoutSeconds <= 0 {
		return fmt.Errorf("execute.timeout_seconds must be > 0, got %d", c.Execute.TimeoutSeconds)
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be > 0, got %d", c.Backend.TimeoutSeconds)
	}
	switch c.Backend.EmbedProvider {
	case "ollama", "hash":
	default:
		return fmt.Errorf("backend.embed_provider must be ollama or hash, got %q", c.Backend.EmbedProvider)
	}
	return nil
}

// Save writes the config as YAML, creating the file with 0644.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
