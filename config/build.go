package config

import (
	"fmt"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/agent"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
	anthropicmodel "github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model/anthropic"
	googlemodel "github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model/google"
	openaimodel "github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model/openai"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/store"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/memory"
)

// BuildModel constructs the configured chat model. Providers form a closed
// set keyed by name.
func BuildModel(cfg LLMConfig) (model.ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		var opts []func(*openaimodel.Options)
		if cfg.Model != "" {
			opts = append(opts, openaimodel.WithModel(cfg.Model))
		}
		if cfg.Temperature != 0 {
			opts = append(opts, openaimodel.WithTemperature(cfg.Temperature))
		}
		if cfg.APIKey != "" {
			opts = append(opts, openaimodel.WithAPIKey(cfg.APIKey))
		}
		return openaimodel.New(opts...), nil
	case "anthropic":
		var opts []func(*anthropicmodel.Options)
		if cfg.Model != "" {
			opts = append(opts, anthropicmodel.WithModel(cfg.Model))
		}
		if cfg.Temperature != 0 {
			opts = append(opts, anthropicmodel.WithTemperature(cfg.Temperature))
		}
		if cfg.APIKey != "" {
			opts = append(opts, anthropicmodel.WithAPIKey(cfg.APIKey))
		}
		return anthropicmodel.New(opts...), nil
	case "google":
		return googlemodel.NewChatModel(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (available: openai, anthropic, google)", cfg.Provider)
	}
}

// BuildStore constructs the configured checkpoint store.
func BuildStore(cfg CheckpointerConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemStore(), nil
	case "sqlite":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite checkpointer requires a dsn (file path)")
		}
		return store.NewSQLiteStore(cfg.DSN)
	case "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql checkpointer requires a dsn")
		}
		return store.NewMySQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown checkpointer driver %q (available: memory, sqlite, mysql)", cfg.Driver)
	}
}

// BuildMemory constructs the configured long-term memory backend.
func BuildMemory(cfg MemoryConfig) (memory.Store, error) {
	switch cfg.Backend {
	case "inmemory":
		return memory.NewInMemoryStore(), nil
	case "chromem":
		return memory.NewChromemStore(memory.ChromemConfig{
			PersistPath: cfg.PersistPath,
			Compress:    cfg.Compress,
		})
	default:
		return nil, fmt.Errorf("unknown memory backend %q (available: inmemory, chromem)", cfg.Backend)
	}
}

// BuildGraph assembles the configured agent graph from its parts.
func (c *Config) BuildGraph() (*graph.Graph, error) {
	m, err := BuildModel(c.LLM)
	if err != nil {
		return nil, err
	}
	opts := agent.Options{
		Model:            m,
		SystemPrompt:     c.Agent.SystemPrompt,
		GeneratePrompt:   c.Agent.GeneratePrompt,
		ReflectionPrompt: c.Agent.ReflectionPrompt,
		ExecutePrompt:    c.Agent.ExecutePrompt,
		MaxIterations:    c.Agent.MaxIterations,
		RecallK:          c.Agent.RecallK,
		TokenBudget:      c.Agent.TokenBudget,
		TokenModel:       c.LLM.Model,
	}
	if agent.Type(c.Agent.Type) == agent.TypeLongTermMemory {
		mem, err := BuildMemory(c.Memory)
		if err != nil {
			return nil, err
		}
		opts.Memory = mem
	}
	return agent.New(agent.Type(c.Agent.Type), opts)
}
