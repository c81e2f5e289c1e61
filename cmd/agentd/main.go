// Command agentd runs an agent built from a YAML configuration, either as
// an HTTP server or as a one-shot chat turn on the command line.
//
// Usage:
//
//	agentd serve --config agent.yaml
//	agentd chat --config agent.yaml --message "hello" [--thread-id t1] [--user-id u1]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/agent"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/config"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/emit"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/store"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve ServeCmd `cmd:"" help:"Start the HTTP server."`
	Chat  ChatCmd  `cmd:"" help:"Run a single chat turn and print the reply."`

	Config string `short:"c" help:"Path to the YAML config file." default:"agent.yaml" type:"path"`
	Env    string `help:"Path to a .env file to load." default:".env"`
	Debug  bool   `help:"Emit per-step engine events to stderr."`
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Addr string `help:"Listen address; overrides the config file." placeholder:":8080"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, exec, registry, err := buildRuntime(cli)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}
	srv := server.New(exec, agent.Type(cfg.Agent.Type),
		server.WithRecursionLimit(cfg.RecursionLimit),
		server.WithRegistry(registry),
	)
	return srv.ListenAndServe(addr)
}

// ChatCmd runs one turn against the configured agent.
type ChatCmd struct {
	Message  string `short:"m" required:"" help:"The user message."`
	ThreadID string `name:"thread-id" help:"Conversation thread; generated when omitted."`
	UserID   string `name:"user-id" help:"User identifier for memory-backed agents."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, exec, _, err := buildRuntime(cli)
	if err != nil {
		return err
	}
	threadID := c.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	var input graph.State
	switch agent.Type(cfg.Agent.Type) {
	case agent.TypeReflect, agent.TypePlanExecuteReplan:
		input = graph.State{"input": c.Message}
	default:
		history, err := priorMessages(context.Background(), exec, threadID)
		if err != nil {
			return err
		}
		input = graph.State{
			"messages": append(history, model.Message{Role: model.RoleUser, Content: c.Message}),
		}
	}

	final, err := exec.Run(context.Background(), input, graph.RunConfig{
		ThreadID:       threadID,
		UserID:         c.UserID,
		RecursionLimit: cfg.RecursionLimit,
	})
	if err != nil {
		return err
	}

	reply := graph.StringValue(final, "final_response")
	if reply == "" {
		reply = graph.StringValue(final, "response")
	}
	if reply == "" {
		var msgs []model.Message
		if decodeErr := graph.Decode(final, "messages", &msgs); decodeErr == nil && len(msgs) > 0 {
			reply = msgs[len(msgs)-1].Content
		}
	}
	fmt.Println(reply)
	fmt.Fprintf(os.Stderr, "thread: %s\n", threadID)
	return nil
}

// priorMessages restores a thread's conversation so a reused --thread-id
// continues where it left off. A new thread has none.
func priorMessages(ctx context.Context, exec *graph.Executor, threadID string) ([]model.Message, error) {
	state, err := exec.LatestState(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []model.Message
	if err := graph.Decode(state, "messages", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func buildRuntime(cli *CLI) (*config.Config, *graph.Executor, *prometheus.Registry, error) {
	if err := config.LoadDotenv(cli.Env); err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, nil, err
	}

	g, err := cfg.BuildGraph()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build agent graph: %w", err)
	}
	st, err := config.BuildStore(cfg.Checkpointer)
	if err != nil {
		return nil, nil, nil, err
	}

	registry := prometheus.NewRegistry()
	opts := []graph.ExecutorOption{
		graph.WithName(cfg.Agent.Name),
		graph.WithMetrics(graph.NewMetrics(registry)),
	}
	if cli.Debug {
		opts = append(opts, graph.WithEmitter(emit.NewLogEmitter(os.Stderr, false)))
	}
	exec, err := graph.NewExecutor(g, st, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, exec, registry, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentd"),
		kong.Description("Config-driven agent workflows over a graph engine"),
		kong.UsageOnError(),
	)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := ctx.Run(&cli); err != nil {
		slog.Error("agentd failed", "err", err)
		os.Exit(1)
	}
}
