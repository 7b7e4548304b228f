package llm

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to the OpenAI chat completions API, or to any
// OpenAI-compatible server when baseURL is set (the hosted Med42 deployment
// exposes that surface).
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI provider. baseURL may be empty for the
// public API.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name returns the provider name.
func (o *OpenAIClient) Name() string { return "openai" }

// Complete sends a chat completion request.
func (o *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = o.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		apiReq.Temperature = float32(*req.Temperature)
	}

	resp, err := o.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		if apiErr, ok := err.(*openai.APIError); ok {
			return nil, &ProviderError{Provider: "openai", Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return nil, &ProviderError{Provider: "openai", Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Message: "no choices in response"}
	}

	return &CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Duration: time.Since(start),
	}, nil
}
