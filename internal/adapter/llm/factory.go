package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvHavocMode is the environment variable name for mode selection.
	EnvHavocMode = "HAVOC_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates an LLM client based on the HAVOC_MODE environment variable.
// If HAVOC_MODE=MOCK, returns a MockClient; otherwise returns a real Client.
func NewLLMClient(baseURL, apiKey string, timeout time.Duration) LLMClient {
	mode := os.Getenv(EnvHavocMode)

	if mode == ModeMock {
		log.Println("HAVOC_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
