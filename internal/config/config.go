// Package config loads the companion configuration from a YAML file and
// fills in defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seedling-ai/companion/internal/chunker"
	"github.com/seedling-ai/companion/internal/policy"
)

// Config is the full companion configuration tree.
type Config struct {
	Database  Database  `yaml:"database"`
	Memory    Memory    `yaml:"memory"`
	Knowledge Knowledge `yaml:"knowledge"`
	Embedding Embedding `yaml:"embedding"`
	Classify  Classify  `yaml:"classify"`
	Policy    Policy    `yaml:"policy"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Memory struct {
	// Window is the number of recent turns included in short-term context.
	Window int `yaml:"window"`
}

type Knowledge struct {
	// SourceDir holds the plain-text corpus the indexer reads.
	SourceDir string `yaml:"source_dir"`
	// IndexDir holds the persisted index artifact.
	IndexDir     string `yaml:"index_dir"`
	TopK         int    `yaml:"top_k"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type Embedding struct {
	// Provider selects the embedder: "ollama", "openai", or "lexical".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	// Fallback enables degrading to the lexical embedder when the
	// provider is unreachable. Only query-time embedding degrades;
	// index builds always fail loudly.
	Fallback bool `yaml:"fallback"`
}

type Classify struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type Policy struct {
	CrisisIntensity float64 `yaml:"crisis_intensity"`
}

// Default returns a configuration usable without any file at all. Paths
// land under the user's home directory.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".companion")
	return Config{
		Database:  Database{Path: filepath.Join(base, "companion.db")},
		Memory:    Memory{Window: 10},
		Knowledge: Knowledge{
			SourceDir:    filepath.Join(base, "corpus"),
			IndexDir:     filepath.Join(base, "index"),
			TopK:         3,
			ChunkSize:    chunker.DefaultSize,
			ChunkOverlap: chunker.DefaultOverlap,
		},
		Embedding: Embedding{
			Provider: "lexical",
			Fallback: true,
		},
		Classify: Classify{Timeout: 5 * time.Second},
		Policy:   Policy{CrisisIntensity: policy.DefaultCrisisIntensity},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file
// is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	d := Default()
	if c.Memory.Window <= 0 {
		c.Memory.Window = d.Memory.Window
	}
	if c.Knowledge.TopK <= 0 {
		c.Knowledge.TopK = d.Knowledge.TopK
	}
	if c.Knowledge.ChunkSize <= 0 {
		c.Knowledge.ChunkSize = d.Knowledge.ChunkSize
	}
	if c.Knowledge.ChunkOverlap < 0 {
		c.Knowledge.ChunkOverlap = d.Knowledge.ChunkOverlap
	}
	if c.Classify.Timeout <= 0 {
		c.Classify.Timeout = d.Classify.Timeout
	}
	if c.Policy.CrisisIntensity <= 0 {
		c.Policy.CrisisIntensity = d.Policy.CrisisIntensity
	}
	return c
}
