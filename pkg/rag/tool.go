// Package rag exposes similarity search to the language model as a
// schema-described callable tool.
package rag

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/askdocs/internal/models"
)

// ErrInvalidToolArguments marks arguments that fail a tool's declared
// schema. The orchestrator reports it to the model as a tool error so
// the model can retry with corrected arguments.
var ErrInvalidToolArguments = errors.New("invalid tool arguments")

// Tool is a callable action the model may request. Call returns the
// payload handed back to the model plus any source attributions the
// invocation observed.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (*Result, error)
}

// Result is the outcome of one tool invocation.
type Result struct {
	Content string          // JSON payload returned to the model
	Count   int             // number of results, for progress events
	Sources []models.Source // attributions collected by the orchestrator
}

// Registry holds the tools offered to the model. Only the search tool
// ships today; registration keeps the surface open for more.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	if _, exists := r.byName[t.Name()]; exists {
		return
	}
	r.tools = append(r.tools, t)
	r.byName[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *Registry) Len() int {
	return len(r.tools)
}

// Specs declares the registered tools in the model's tool-calling
// schema.
func (r *Registry) Specs() []llms.Tool {
	specs := make([]llms.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return specs
}

// DedupeSources removes duplicate attributions by (document, page),
// keeping first-seen order.
func DedupeSources(sources []models.Source) []models.Source {
	type key struct {
		doc  string
		page int
	}
	var unique []models.Source
	seen := make(map[key]bool)
	for _, s := range sources {
		k := key{s.DocumentID, s.Page}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, s)
	}
	return unique
}
