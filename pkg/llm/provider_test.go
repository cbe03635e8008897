package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/askdocs/internal/models"
)

// fakeModel scripts GenerateContent, resolving call options so tests
// can exercise the streaming and tool paths.
type fakeModel struct {
	generate func(ctx context.Context, opts *llms.CallOptions) (*llms.ContentResponse, error)

	lastTools []llms.Tool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := &llms.CallOptions{}
	for _, opt := range options {
		opt(opts)
	}
	f.lastTools = opts.Tools
	return f.generate(ctx, opts)
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func toolResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
		}},
	}}}
}

func searchSpec() []llms.Tool {
	return []llms.Tool{{
		Type:     "function",
		Function: &llms.FunctionDefinition{Name: "semantic_search"},
	}}
}

func TestConverseReturnsToolCalls(t *testing.T) {
	model := &fakeModel{generate: func(ctx context.Context, opts *llms.CallOptions) (*llms.ContentResponse, error) {
		return toolResponse("call-1", "semantic_search", `{"query":"nat"}`), nil
	}}
	provider := NewProviderWithModel(ProviderConfig{}, model)

	reply, err := provider.Converse(context.Background(), nil, searchSpec(), nil)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call-1", reply.ToolCalls[0].ID)
	assert.Equal(t, "semantic_search", reply.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"nat"}`, string(reply.ToolCalls[0].Arguments))
	assert.Len(t, model.lastTools, 1, "tools should be offered to the model")
}

func TestConverseReplaysContentFromToolRound(t *testing.T) {
	// A final answer arriving during a tool-capable round is not
	// streamed by the vendor; Converse replays it through the token
	// callback in segments.
	model := &fakeModel{generate: func(ctx context.Context, opts *llms.CallOptions) (*llms.ContentResponse, error) {
		assert.Nil(t, opts.StreamingFunc, "tool rounds must not stream")
		return textResponse("NAT translates addresses.\nSee RFC 3022."), nil
	}}
	provider := NewProviderWithModel(ProviderConfig{}, model)

	var tokens []string
	onToken := func(ctx context.Context, token string) error {
		tokens = append(tokens, token)
		return nil
	}

	reply, err := provider.Converse(context.Background(), nil, searchSpec(), onToken)
	require.NoError(t, err)
	assert.Empty(t, reply.ToolCalls)
	assert.Greater(t, len(tokens), 1)
	assert.Equal(t, reply.Content, strings.Join(tokens, ""))
}

func TestConverseStreamsNativelyWithoutTools(t *testing.T) {
	model := &fakeModel{generate: func(ctx context.Context, opts *llms.CallOptions) (*llms.ContentResponse, error) {
		require.NotNil(t, opts.StreamingFunc)
		for _, chunk := range []string{"Hello ", "world"} {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
		return textResponse("Hello world"), nil
	}}
	provider := NewProviderWithModel(ProviderConfig{}, model)

	var got strings.Builder
	reply, err := provider.Converse(context.Background(), nil, nil, func(ctx context.Context, token string) error {
		got.WriteString(token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got.String())
	assert.Equal(t, "Hello world", reply.Content)
}

func TestConverseWrapsProviderFailure(t *testing.T) {
	model := &fakeModel{generate: func(ctx context.Context, opts *llms.CallOptions) (*llms.ContentResponse, error) {
		return nil, errors.New("connection reset")
	}}
	provider := NewProviderWithModel(ProviderConfig{}, model)

	_, err := provider.Converse(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrStreamFailed)
}

func TestConversePropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &fakeModel{generate: func(ctx context.Context, opts *llms.CallOptions) (*llms.ContentResponse, error) {
		cancel()
		return nil, ctx.Err()
	}}
	provider := NewProviderWithModel(ProviderConfig{}, model)

	_, err := provider.Converse(ctx, nil, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStreamFailed)
}

func TestConverseEmptyResponse(t *testing.T) {
	model := &fakeModel{generate: func(ctx context.Context, opts *llms.CallOptions) (*llms.ContentResponse, error) {
		return &llms.ContentResponse{}, nil
	}}
	provider := NewProviderWithModel(ProviderConfig{}, model)

	_, err := provider.Converse(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrStreamFailed)
}

func TestSplitSegments(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"one two", []string{"one ", "two"}},
		{"line one\nline two ", []string{"line ", "one\n", "line ", "two "}},
	}
	for _, tt := range tests {
		got := splitSegments(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, strings.Join(got, ""), "segments must re-join to the original text")
	}
}

func TestBuildHistory(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}

	content := BuildHistory("be helpful", history, "what is NAT?")
	require.Len(t, content, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, content[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[3].Role)
}

func TestBuildHistoryWithoutSystemPrompt(t *testing.T) {
	content := BuildHistory("", nil, "hello")
	require.Len(t, content, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[0].Role)
}

func TestToolMessages(t *testing.T) {
	call := ToolCall{ID: "call-1", Name: "semantic_search", Arguments: []byte(`{"query":"nat"}`)}

	assistant := AssistantToolCalls([]ToolCall{call})
	assert.Equal(t, llms.ChatMessageTypeAI, assistant.Role)
	require.Len(t, assistant.Parts, 1)

	response := ToolResponse(call, `{"count":0}`)
	assert.Equal(t, llms.ChatMessageTypeTool, response.Role)
	part, ok := response.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call-1", part.ToolCallID)
}
