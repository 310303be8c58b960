// Package openai implements llm.Client on the official OpenAI Go SDK.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cosmos-ai/cosmos-host/pkg/llm"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

const (
	defaultAPIBaseURL = "https://api.openai.com/v1"
	defaultModel      = "gpt-4-turbo"
)

// Client implements the llm.Client interface using the official OpenAI Go SDK.
type Client struct {
	model  string
	openai *openai.Client
}

// Config defines the settings for the OpenAI client wrapper.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient builds a new llm.Client backed by OpenAI's official SDK.
func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = viper.GetString("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = viper.GetString("OPENAI_BASE_URL")
	}
	baseURL := normalizeBaseURL(cfg.BaseURL)
	if cfg.Model == "" {
		model := viper.GetString("OPENAI_DEFAULT_MODEL")
		if model == "" {
			model = defaultModel
		}
		cfg.Model = model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, option.WithBaseURL(baseURL))

	openaiClient := openai.NewClient(opts...)

	logging.LogDebugf("Initialized OpenAI client (model=%s, base=%s, timeout=%s)",
		cfg.Model, baseURL, cfg.Timeout)

	return &Client{
		model:  cfg.Model,
		openai: &openaiClient,
	}
}

// Chat sends a non-streaming chat request to OpenAI.
func (c *Client) Chat(ctx context.Context, request llm.ChatRequest) (*llm.ChatResponse, error) {
	if request.Model == "" {
		request.Model = c.model
	}

	params := c.buildChatParams(request)

	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion failed")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("openai returned an empty response")
	}

	message := llm.Message{
		Role:    strings.ToLower(string(resp.Choices[0].Message.Role)),
		Content: resp.Choices[0].Message.Content,
	}

	return &llm.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Message: message,
		Usage:   convertUsage(resp.Usage),
	}, nil
}

// ChatStream starts a streaming chat completion and returns incremental chunks.
func (c *Client) ChatStream(ctx context.Context, request llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if request.Model == "" {
		request.Model = c.model
	}

	params := c.buildChatParams(request)

	stream := c.openai.Chat.Completions.NewStreaming(ctx, params)
	chunkChan := make(chan llm.StreamChunk, 10)

	go func() {
		defer close(chunkChan)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				if chunk.Usage.TotalTokens > 0 {
					chunkChan <- llm.StreamChunk{
						ID:    chunk.ID,
						Model: chunk.Model,
						Usage: convertUsage(chunk.Usage),
						Done:  true,
					}
				}
				continue
			}
			for _, choice := range chunk.Choices {
				chunkChan <- llm.StreamChunk{
					ID:      chunk.ID,
					Model:   chunk.Model,
					Content: choice.Delta.Content,
					Usage:   convertUsage(chunk.Usage),
					Done:    choice.FinishReason != "",
				}
			}
		}

		if err := stream.Err(); err != nil {
			chunkChan <- llm.StreamChunk{
				Error: errors.Wrap(err, "openai streaming error"),
				Done:  true,
			}
		}
	}()

	return chunkChan, nil
}

func (c *Client) buildChatParams(req llm.ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: convertMessages(req.Messages),
	}

	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = param.NewOpt(int64(*req.MaxTokens))
	}

	return params
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			result = append(result, openai.ChatCompletionMessageParamOfAssistant(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

func convertUsage(usage openai.CompletionUsage) llm.Usage {
	return llm.Usage{
		PromptTokens:     int(usage.PromptTokens),
		CompletionTokens: int(usage.CompletionTokens),
		TotalTokens:      int(usage.TotalTokens),
	}
}

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultAPIBaseURL
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if !strings.HasSuffix(trimmed, "/v1") {
		trimmed += "/v1"
	}
	return trimmed
}
