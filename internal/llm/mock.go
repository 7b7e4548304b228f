package llm

import "context"

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Calls        int
}

func (m *MockClient) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.Calls++
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response", Model: m.Name()}, nil
}
