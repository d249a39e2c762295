// Package config loads pipeline configuration from an optional YAML file and
// the environment. Missing required settings fail fast at startup, before
// any pipeline stage runs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultModel        = "gpt-4o-mini"
	DefaultSchemaPath   = "schema.yaml"
	DefaultHTTPAddr     = ":8080"
	DefaultQueryTimeout = 30 * time.Second
)

// ConfigurationError lists the required settings that are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// Duration decodes YAML strings like "30s" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Neo4j holds graph store connection settings.
type Neo4j struct {
	URI          string   `yaml:"uri"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	QueryTimeout Duration `yaml:"query_timeout"`
}

// OpenAI holds language model settings.
type OpenAI struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Config is the full runtime configuration.
type Config struct {
	Neo4j      Neo4j  `yaml:"neo4j"`
	OpenAI     OpenAI `yaml:"openai"`
	RedisURL   string `yaml:"redis_url"`
	SchemaPath string `yaml:"schema_path"`
	HTTPAddr   string `yaml:"http_addr"`
}

// Load reads the YAML file when path is non-empty, applies environment
// overrides, fills defaults, and validates. The environment always wins over
// the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds configuration from the environment alone.
func FromEnv() (*Config, error) {
	return Load("")
}

func (c *Config) applyEnv() {
	setIfPresent(&c.Neo4j.URI, "NEO4J_URI")
	setIfPresent(&c.Neo4j.Username, "NEO4J_USERNAME")
	setIfPresent(&c.Neo4j.Password, "NEO4J_PASSWORD")
	setIfPresent(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setIfPresent(&c.OpenAI.Model, "OPENAI_MODEL")
	setIfPresent(&c.RedisURL, "REDIS_URL")
	setIfPresent(&c.SchemaPath, "BIZGRAPH_SCHEMA")
	setIfPresent(&c.HTTPAddr, "BIZGRAPH_HTTP_ADDR")
}

func (c *Config) applyDefaults() {
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultModel
	}
	if c.SchemaPath == "" {
		c.SchemaPath = DefaultSchemaPath
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.Neo4j.QueryTimeout <= 0 {
		c.Neo4j.QueryTimeout = Duration(DefaultQueryTimeout)
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Neo4j.URI == "" {
		missing = append(missing, "NEO4J_URI")
	}
	if c.Neo4j.Username == "" {
		missing = append(missing, "NEO4J_USERNAME")
	}
	if c.Neo4j.Password == "" {
		missing = append(missing, "NEO4J_PASSWORD")
	}
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

func setIfPresent(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
