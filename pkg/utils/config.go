package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// IngestConfig drives cmd/ingest. Env supplies defaults; commands may
// override fields from flags before calling LoadSources.
type IngestConfig struct {
	InputDir          string
	BatchSize         int
	SourceNamespace   string
	IsEgyptianDefault bool
	SourcesFile       string
	LogMode           string
}

// SourceOverride adjusts normalization for a single input file.
type SourceOverride struct {
	File       string `yaml:"file"`
	Namespace  string `yaml:"namespace"`
	IsEgyptian *bool  `yaml:"is_egyptian"`
	ArrayKey   string `yaml:"array_key"`
}

type sourcesFile struct {
	Sources []SourceOverride `yaml:"sources"`
}

type APIConfig struct {
	Addr      string
	LogMode   string
	RateLimit float64
	RateBurst int
}

// LoadDotEnv loads .env from the working directory when present.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func LoadIngestConfig() IngestConfig {
	LoadDotEnv()
	return IngestConfig{
		InputDir:          envString("FORMA_INPUT_DIR", "data/foods"),
		BatchSize:         envInt("FORMA_BATCH_SIZE", 50),
		SourceNamespace:   envString("FORMA_SOURCE_NAMESPACE", "food"),
		IsEgyptianDefault: envBool("FORMA_IS_EGYPTIAN_DEFAULT", true),
		SourcesFile:       envString("FORMA_SOURCES_FILE", ""),
		LogMode:           envString("FORMA_LOG_MODE", "dev"),
	}
}

func (c IngestConfig) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return fmt.Errorf("input dir is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if strings.TrimSpace(c.SourceNamespace) == "" {
		return fmt.Errorf("source namespace is required")
	}
	return nil
}

// LoadSources reads the optional YAML sources file. An empty path yields no
// overrides.
func LoadSources(path string) ([]SourceOverride, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	for i, s := range f.Sources {
		if strings.TrimSpace(s.File) == "" {
			return nil, fmt.Errorf("sources[%d]: file is required", i)
		}
	}
	return f.Sources, nil
}

func LoadAPIConfig() APIConfig {
	LoadDotEnv()
	return APIConfig{
		Addr:      envString("FORMA_API_ADDR", ":8080"),
		LogMode:   envString("FORMA_LOG_MODE", "dev"),
		RateLimit: envFloat("FORMA_API_RPS", 50),
		RateBurst: envInt("FORMA_API_BURST", 20),
	}
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
