package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvVars substitutes ${VAR} and ${VAR:-default} references.
func ExpandEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		groups := envVarPattern.FindSubmatch(match)
		name := string(groups[1])
		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if len(groups[3]) > 0 {
			return groups[3]
		}
		return []byte("")
	})
}

// Parse decodes YAML strictly: unknown options are rejected.
func Parse(content []byte) (*Config, error) {
	var cfg Config

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return ProcessConfigPipeline(&cfg)
}

// LoadFromFile reads, env-expands, parses, defaults, and validates a config
// file.
func LoadFromFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(ExpandEnvVars(content))
}

// Default returns a fully defaulted in-memory configuration. The ollama
// provider is used so no API key is required.
func Default() *Config {
	cfg := &Config{
		LLMs: map[string]*LLMProviderConfig{
			"default": {Type: "ollama"},
		},
		Embedders: map[string]*EmbedderConfig{
			"default": {Type: "ollama"},
		},
		VectorStores: map[string]*VectorStoreConfig{
			"default": {Type: "chromem"},
		},
	}
	cfg.SetDefaults()
	return cfg
}
