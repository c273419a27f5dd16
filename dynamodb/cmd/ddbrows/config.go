package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "ddbrows.yaml"

// Config holds the defaults of every ddbrows command.
// Loaded from ddbrows.yaml if present.
type Config struct {
	// DataDir is where BadgerDB stores data.
	DataDir string `yaml:"dataDir"`

	// Port is the HTTP port for the serve command.
	Port int `yaml:"port"`

	// Schema is a glob pattern for schema YAML files.
	Schema string `yaml:"schema"`

	// Strategy picks the tuple builder: cartesian or join.
	Strategy string `yaml:"strategy"`

	// LoadConcurrency bounds the tables loaded at once. 0 or 1 loads sequentially.
	LoadConcurrency int `yaml:"loadConcurrency"`

	Log      LogConfig      `yaml:"log"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}

// DynamoDBConfig points the commands at a DynamoDB endpoint instead of the
// local badger store when Endpoint or Region is set.
type DynamoDBConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
}

func (c DynamoDBConfig) Remote() bool {
	return c.Endpoint != "" || c.Region != ""
}

func defaultConfig() Config {
	return Config{
		DataDir:  "./data",
		Port:     3070,
		Schema:   "schema/*.yaml",
		Strategy: "cartesian",
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig searches for ddbrows.yaml starting from dir and walking up to the
// filesystem root. Returns the defaults if not found.
func LoadConfig(dir string) (Config, error) {
	cfg := defaultConfig()

	configPath := findConfigFile(dir)
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	// relative paths are relative to the config file
	base := filepath.Dir(configPath)
	if cfg.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(base, cfg.DataDir)
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(base, cfg.Schema)
	}
	return cfg, nil
}

// findConfigFile searches for ddbrows.yaml walking up from dir.
func findConfigFile(dir string) string {
	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}
