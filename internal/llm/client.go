// Package llm implements the completion collaborator on top of
// langchaingo, plus the sanitizer that turns raw model output into
// something the schema validator can judge.
package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/reviewloop/pkg/models"
)

// ReviewSeed is the fixed pseudo-random seed sent with every completion
// request so repeated reviews of unchanged code are reproducible.
const ReviewSeed = 42

// Options configures the completion client.
type Options struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// Client calls an OpenAI-compatible completion endpoint.
type Client struct {
	llm     llms.Model
	options Options
}

// NewClient creates a completion client for the given credentials.
func NewClient(options Options) (*Client, error) {
	if options.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []openai.Option{
		openai.WithToken(options.APIKey),
	}
	if options.Model != "" {
		opts = append(opts, openai.WithModel(options.Model))
	}
	if options.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(options.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	return &Client{llm: model, options: options}, nil
}

// Complete sends the current instruction as the system message and the
// code under review as the user message, requesting a structured JSON
// response at a fixed seed.
func (c *Client) Complete(ctx context.Context, model, instruction, code string) (*models.Completion, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, instruction),
		llms.TextParts(llms.ChatMessageTypeHuman, code),
	}

	callOpts := []llms.CallOption{
		llms.WithSeed(ReviewSeed),
		llms.WithJSONMode(),
	}
	if model != "" {
		callOpts = append(callOpts, llms.WithModel(model))
	}

	log.Debug().
		Str("model", model).
		Int("instruction_len", len(instruction)).
		Int("code_len", len(code)).
		Msg("Calling completion endpoint")

	resp, err := c.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	choice := resp.Choices[0]
	usage := usageFromGenerationInfo(choice.GenerationInfo)

	log.Debug().
		Str("model", model).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Msg("Completion received")

	return &models.Completion{Text: choice.Content, Usage: usage}, nil
}

// usageFromGenerationInfo extracts token counts from the provider's
// generation metadata. Providers that report no usage yield zeros.
func usageFromGenerationInfo(info map[string]any) models.TokenUsage {
	usage := models.TokenUsage{
		PromptTokens:     intField(info, "PromptTokens"),
		CompletionTokens: intField(info, "CompletionTokens"),
		TotalTokens:      intField(info, "TotalTokens"),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func intField(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
