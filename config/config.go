// Package config loads the agent runtime configuration from YAML with
// environment-variable substitution, and builds the configured model,
// checkpoint store, memory backend, and agent graph.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for one agent deployment.
type Config struct {
	Agent        AgentConfig        `yaml:"agent"`
	LLM          LLMConfig          `yaml:"llm"`
	Checkpointer CheckpointerConfig `yaml:"checkpointer"`
	Memory       MemoryConfig       `yaml:"memory"`
	Server       ServerConfig       `yaml:"server"`

	// RecursionLimit caps node applications per run. 0 selects the
	// engine default.
	RecursionLimit int `yaml:"recursion_limit"`
}

// AgentConfig selects and parameterizes the agent graph.
type AgentConfig struct {
	Type             string `yaml:"type"`
	Name             string `yaml:"name"`
	SystemPrompt     string `yaml:"system_prompt"`
	GeneratePrompt   string `yaml:"generate_prompt"`
	ReflectionPrompt string `yaml:"reflection_prompt"`
	ExecutePrompt    string `yaml:"execute_prompt"`
	MaxIterations    int    `yaml:"max_iterations"`
	RecallK          int    `yaml:"recall_k"`
	TokenBudget      int    `yaml:"token_budget"`
}

// LLMConfig selects the chat model provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	APIKey      string  `yaml:"api_key"`
}

// CheckpointerConfig selects the checkpoint store backend.
type CheckpointerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MemoryConfig selects the long-term memory backend.
type MemoryConfig struct {
	Backend     string `yaml:"backend"`
	PersistPath string `yaml:"persist_path"`
	Compress    bool   `yaml:"compress"`
}

// ServerConfig holds the HTTP boundary settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoadDotenv loads a .env file into the process environment if one
// exists. Variables already set in the environment win.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads, env-substitutes, and parses a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded, err := ExpandEnv(string(raw))
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Agent.Type == "" {
		c.Agent.Type = "react"
	}
	if c.Agent.Name == "" {
		c.Agent.Name = c.Agent.Type + "_agent"
	}
	if c.Checkpointer.Driver == "" {
		c.Checkpointer.Driver = "memory"
	}
	if c.Memory.Backend == "" {
		c.Memory.Backend = "inmemory"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)(:-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references. An unset
// variable without a default is an error rather than a silent empty
// string.
func ExpandEnv(s string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		name := parts[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if parts[2] != "" {
			return parts[3]
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %s not set and no default provided", strings.Join(missing, ", "))
	}
	return out, nil
}
