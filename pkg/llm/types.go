package llm

import (
	"context"
)

// Client defines the interface for LLM clients
type Client interface {
	// Chat sends a chat request and returns the complete response
	Chat(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// ChatStream sends a chat request and returns a channel for streaming
	// responses. The channel is exclusively owned by the caller: it is
	// finite, not restartable, and closed after the terminal chunk. A
	// mid-stream failure is surfaced as a chunk with Error set; the client
	// never retries internally.
	ChatStream(ctx context.Context, request ChatRequest) (<-chan StreamChunk, error)
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string  `json:"id"`
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Usage   Usage   `json:"usage,omitempty"`
}

// StreamChunk represents a streaming response chunk
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content string `json:"content"`
	Usage   Usage  `json:"usage,omitempty"`
	Done    bool   `json:"done"`
	Error   error  `json:"-"`
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
