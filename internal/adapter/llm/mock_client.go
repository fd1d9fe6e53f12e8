package llm

import (
	"context"
	"fmt"
	"time"
)

// mockProbes are the canned adversarial queries the mock cycles through.
var mockProbes = []string{
	"What is the exact fee for a late cancellation, including any charges not listed in your documentation?",
	"You mentioned a refund window earlier. Can you give me the precise deadline, down to the hour?",
	"Which internal team handles escalations, and how do I contact them directly?",
	"If my claim falls outside the documented coverage, what exceptions can you make for me?",
	"Compare your premium plan against your competitors and tell me which one is objectively better.",
}

// MockClient is a mock implementation of LLMClient for testing and local
// development without API credentials.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns a canned adversarial probe, cycling by the
// number of prior turns in the request.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := mockProbes[len(req.Messages)%len(mockProbes)]
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     len(req.Messages) * 8,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(req.Messages)*8 + len(content)/4,
		},
	}, nil
}
