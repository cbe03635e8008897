package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/askdocs/internal/models"
)

// ErrStreamFailed marks a fatal provider failure: request error,
// mid-stream disconnect or malformed vendor response. Turns hitting it
// discard partial output and surface an error event.
var ErrStreamFailed = errors.New("provider stream failed")

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Reply is the normalized outcome of one model round: either tool
// calls to execute or final answer content.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// TokenFunc receives answer tokens as they become available.
type TokenFunc func(ctx context.Context, token string) error

// ProviderConfig represents the configuration for a provider adapter.
type ProviderConfig struct {
	Provider       string
	Model          string
	BaseURL        string
	MaxTokens      int
	Temperature    float64
	TimeoutSeconds int
}

// Provider normalizes a vendor's tool-calling and streaming protocol
// behind Converse. The vendor is selected by configuration, one model
// client per provider instance.
type Provider struct {
	config ProviderConfig
	model  llms.Model
}

// NewProviderWithConfig creates a Provider for the configured vendor.
func NewProviderWithConfig(config ProviderConfig) (*Provider, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	model, err := newModel(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Provider{config: config, model: model}, nil
}

// NewProviderWithModel creates a Provider over an existing model client.
func NewProviderWithModel(config ProviderConfig, model llms.Model) *Provider {
	return &Provider{config: config, model: model}
}

func newModel(config ProviderConfig) (llms.Model, error) {
	switch config.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(config.Model)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(baseURL))
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}
}

// Converse submits the conversation plus the offered tools and returns
// either tool calls or final content.
//
// While tools are offered the call is non-streaming so tool requests
// are detected atomically; a reply that carries no tool calls is then
// fed through onToken in word segments. When no tools are offered the
// reply streams natively. Either way onToken has seen the complete
// content by the time Converse returns without tool calls.
func (p *Provider) Converse(ctx context.Context, history []llms.MessageContent, tools []llms.Tool, onToken TokenFunc) (*Reply, error) {
	if p.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	opts := []llms.CallOption{
		llms.WithTemperature(p.config.Temperature),
		llms.WithMaxTokens(p.config.MaxTokens),
	}

	var streamErr error
	switch {
	case len(tools) > 0:
		opts = append(opts, llms.WithTools(tools))
	case onToken != nil:
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if err := onToken(ctx, string(chunk)); err != nil {
				streamErr = err
				return err
			}
			return nil
		}))
	}

	resp, err := p.model.GenerateContent(ctx, history, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if streamErr != nil {
			return nil, streamErr
		}
		return nil, fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrStreamFailed)
	}

	choice := resp.Choices[0]
	reply := &Reply{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: json.RawMessage(tc.FunctionCall.Arguments),
		})
	}

	// A final answer produced during a tool-capable round arrives
	// unstreamed; replay it through the token callback.
	if len(reply.ToolCalls) == 0 && len(tools) > 0 && onToken != nil {
		for _, segment := range splitSegments(reply.Content) {
			if err := onToken(ctx, segment); err != nil {
				return nil, err
			}
		}
	}

	return reply, nil
}

// splitSegments cuts text into word-plus-trailing-whitespace segments,
// preserving the original bytes when re-joined.
func splitSegments(s string) []string {
	var segments []string
	start := 0
	inSpace := false
	for i, r := range s {
		isSpace := unicode.IsSpace(r)
		if inSpace && !isSpace {
			segments = append(segments, s[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(s) {
		segments = append(segments, s[start:])
	}
	return segments
}

// BuildHistory assembles the model conversation: system prompt, prior
// session messages, then the new user message.
func BuildHistory(systemPrompt string, history []models.Message, userText string) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history)+2)
	if systemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, msg := range history {
		switch msg.Role {
		case models.RoleAssistant:
			content = append(content, llms.TextParts(llms.ChatMessageTypeAI, msg.Content))
		case models.RoleSystem:
			// The session's system prompt already leads the context.
		default:
			content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		}
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, userText))
	return content
}

// AssistantToolCalls encodes the model's tool-call request as the
// assistant message appended to the conversation before tool results.
func AssistantToolCalls(calls []ToolCall) llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, llms.ToolCall{
			ID:   call.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      call.Name,
				Arguments: string(call.Arguments),
			},
		})
	}
	return llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts}
}

// ToolResponse encodes one executed tool result as a tool message.
func ToolResponse(call ToolCall, content string) llms.MessageContent {
	return llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    content,
			},
		},
	}
}
