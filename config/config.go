// Package config loads service configuration with the precedence
// defaults → YAML file → environment variables. A .env file in the working
// directory is honored so local runs do not need exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CohereConfig configures the embedding provider.
type CohereConfig struct {
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// QdrantConfig configures the vector index.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	VectorSize int    `yaml:"vector_size"`
}

// ChunkConfig configures the chunker.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// CrawlConfig configures the crawler.
type CrawlConfig struct {
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxPages          int     `yaml:"max_pages"`
}

// PipelineConfig configures the ingestion run itself.
type PipelineConfig struct {
	CheckpointFile string `yaml:"checkpoint_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the full service configuration.
type Config struct {
	Cohere   CohereConfig   `yaml:"cohere"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Chunk    ChunkConfig    `yaml:"chunk"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cohere: CohereConfig{
			Model:      "embed-english-v3.0",
			BatchSize:  96,
			MaxRetries: 3,
			Timeout:    60 * time.Second,
		},
		Qdrant: QdrantConfig{
			Collection: "textbook_embeddings",
			VectorSize: 1024,
		},
		Chunk: ChunkConfig{
			Size:    512,
			Overlap: 50,
		},
		Pipeline: PipelineConfig{
			CheckpointFile: "ingestion_checkpoint.json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. path may be empty; when set, the YAML file
// must exist. Environment variables override both defaults and file values.
func Load(path string) (*Config, error) {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays the recognized environment variables onto the config.
func (c *Config) applyEnv() error {
	setString("COHERE_API_KEY", &c.Cohere.APIKey)
	setString("COHERE_MODEL", &c.Cohere.Model)
	setString("QDRANT_URL", &c.Qdrant.URL)
	setString("QDRANT_API_KEY", &c.Qdrant.APIKey)
	setString("COLLECTION_NAME", &c.Qdrant.Collection)
	setString("CHECKPOINT_FILE", &c.Pipeline.CheckpointFile)
	setString("DOCS_BASE_URL", &c.Crawl.BaseURL)
	setString("LOG_LEVEL", &c.Log.Level)

	if err := setInt("BATCH_SIZE", &c.Cohere.BatchSize); err != nil {
		return err
	}
	if err := setInt("MAX_RETRIES", &c.Cohere.MaxRetries); err != nil {
		return err
	}
	if err := setInt("VECTOR_DIM", &c.Qdrant.VectorSize); err != nil {
		return err
	}
	if err := setInt("CHUNK_SIZE", &c.Chunk.Size); err != nil {
		return err
	}
	if err := setInt("CHUNK_OVERLAP", &c.Chunk.Overlap); err != nil {
		return err
	}

	// REQUEST_TIMEOUT is plain seconds.
	if raw := os.Getenv("REQUEST_TIMEOUT"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", raw, err)
		}
		c.Cohere.Timeout = time.Duration(secs) * time.Second
	}

	return nil
}

// Validate reports every missing required value at once, named by its
// environment variable.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Cohere.APIKey) == "" {
		missing = append(missing, "COHERE_API_KEY")
	}
	if strings.TrimSpace(c.Qdrant.URL) == "" {
		missing = append(missing, "QDRANT_URL")
	}
	if strings.TrimSpace(c.Qdrant.APIKey) == "" {
		missing = append(missing, "QDRANT_API_KEY")
	}
	if strings.TrimSpace(c.Crawl.BaseURL) == "" {
		missing = append(missing, "DOCS_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Chunk.Overlap, c.Chunk.Size)
	}

	return nil
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = n
	return nil
}
