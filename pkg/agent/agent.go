// Package agent drives the bounded tool-calling loop: ask the model,
// execute any search it requests, feed the result back, repeat until a
// final answer streams out or the iteration cap forces one.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/llm"
	"github.com/xhad/askdocs/pkg/rag"
)

// Provider is the model round-trip the orchestrator depends on.
type Provider interface {
	Converse(ctx context.Context, history []llms.MessageContent, tools []llms.Tool, onToken llm.TokenFunc) (*llm.Reply, error)
}

// Config bounds one orchestrator instance. Passed explicitly so tests
// and callers can vary caps per turn without shared state.
type Config struct {
	MaxIterations int
	ToolsEnabled  bool
}

// Turn is the completed outcome of one user turn.
type Turn struct {
	Assistant  models.Message
	Iterations int
	Capped     bool
}

// Orchestrator runs one conversation turn at a time. Within a turn
// execution is strictly sequential; a single instance may serve many
// concurrent turns because it holds no per-turn state.
type Orchestrator struct {
	provider Provider
	registry *rag.Registry
	config   Config
	logger   *slog.Logger
}

func New(provider Provider, registry *rag.Registry, config Config, logger *slog.Logger) *Orchestrator {
	if config.MaxIterations == 0 {
		config.MaxIterations = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{provider: provider, registry: registry, config: config, logger: logger}
}

// Run executes the turn over the prepared conversation and returns the
// assistant message to persist. Search progress and answer tokens are
// emitted through emit as they happen; the terminal done/error event
// belongs to the caller, which owns persistence.
//
// Tool rounds stop at the iteration cap: the final model call is made
// with tools withheld and whatever answer it produces is accepted.
func (o *Orchestrator) Run(ctx context.Context, history []llms.MessageContent, emit EmitFunc) (*Turn, error) {
	var (
		content    strings.Builder
		sources    []models.Source
		iterations int
		capped     bool
	)

	onToken := func(ctx context.Context, token string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		content.WriteString(token)
		return emit(Event{Type: EventChunk, Chunk: token})
	}

	var specs []llms.Tool
	if o.config.ToolsEnabled && o.registry != nil {
		specs = o.registry.Specs()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var tools []llms.Tool
		if iterations < o.config.MaxIterations {
			tools = specs
		}

		reply, err := o.provider.Converse(ctx, history, tools, onToken)
		if err != nil {
			return nil, err
		}

		if len(reply.ToolCalls) == 0 || len(tools) == 0 {
			// Final answer. Guard for providers that never invoke
			// the token callback.
			if content.Len() == 0 && reply.Content != "" {
				if err := onToken(ctx, reply.Content); err != nil {
					return nil, err
				}
			}
			break
		}

		iterations++
		history = append(history, llm.AssistantToolCalls(reply.ToolCalls))

		for _, call := range reply.ToolCalls {
			payload, callSources, err := o.invokeTool(ctx, call, emit)
			if err != nil {
				return nil, err
			}
			history = append(history, llm.ToolResponse(call, payload))
			sources = append(sources, callSources...)
		}

		if iterations >= o.config.MaxIterations {
			capped = true
			o.logger.Warn("tool iteration cap reached, finalizing without tools",
				"iterations", iterations, "max", o.config.MaxIterations)
		}
	}

	return &Turn{
		Assistant: models.Message{
			Role:      models.RoleAssistant,
			Content:   content.String(),
			CreatedAt: time.Now().UTC(),
			Sources:   rag.DedupeSources(sources),
		},
		Iterations: iterations,
		Capped:     capped,
	}, nil
}

// toolError is the structured payload a failed invocation reports back
// to the model, mirroring the success shape so the model can keep
// going without that context.
type toolError struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
	Error   string   `json:"error"`
}

// invokeTool executes one requested invocation. Tool-local failures
// (bad arguments, embedding or search outage) are degraded to an error
// payload for the model; only cancellation and client-write failures
// abort the turn.
func (o *Orchestrator) invokeTool(ctx context.Context, call llm.ToolCall, emit EmitFunc) (string, []models.Source, error) {
	invocationID := uuid.NewString()
	query := rag.QueryOf(call.Arguments)
	logger := o.logger.With("tool", call.Name, "invocation_id", invocationID)

	if err := emit(Event{Type: EventSearch, Search: &SearchEvent{Query: query, Status: SearchStatusSearching}}); err != nil {
		return "", nil, err
	}

	report := func(count int) error {
		return emit(Event{Type: EventSearch, Search: &SearchEvent{
			Query:        query,
			ResultsCount: &count,
			Status:       SearchStatusCompleted,
		}})
	}

	fail := func(cause error) (string, []models.Source, error) {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		logger.Warn("tool invocation failed", "error", cause)
		payload, _ := json.Marshal(toolError{
			Query:   query,
			Results: []string{},
			Sources: []string{},
			Error:   cause.Error(),
		})
		if err := report(0); err != nil {
			return "", nil, err
		}
		return string(payload), nil, nil
	}

	tool, ok := o.registry.Get(call.Name)
	if !ok {
		return fail(&unknownToolError{name: call.Name})
	}

	result, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		return fail(err)
	}

	logger.Info("tool invocation completed", "results", result.Count)
	if err := report(result.Count); err != nil {
		return "", nil, err
	}

	return result.Content, result.Sources, nil
}

type unknownToolError struct {
	name string
}

func (e *unknownToolError) Error() string {
	return "unknown tool: " + e.name
}
