package tiebreak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/graphfold/graphfold/pkg/types"
)

const (
	// DefaultModel is enough for tiebreak calls: the prompt is small and the
	// answer a single token.
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxTokens caps the completion. The answer is one id or the
	// no-match token; anything longer is already malformed.
	DefaultMaxTokens = 64
	// DefaultCallTimeout bounds one completion round trip.
	DefaultCallTimeout = 20 * time.Second
)

// Config tunes the OpenAI tiebreak client.
type Config struct {
	Model       string
	BaseURL     string
	MaxTokens   int
	CallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}

// OpenAIClient implements Client with a single chat completion per entity.
// No retries: a failed or slow call surfaces as an error and the entity
// falls back to human review.
type OpenAIClient struct {
	client *openai.Client
	config Config
	logger *slog.Logger
}

// NewOpenAIClient creates a tiebreak client. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey string, config Config, logger *slog.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config.withDefaults(),
		logger: logger,
	}
}

// Tiebreak implements Client.
func (c *OpenAIClient) Tiebreak(ctx context.Context, entityType string, entity types.Properties, candidates []*types.Candidate) (Verdict, error) {
	if len(candidates) == 0 {
		return Verdict{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
		// go-openai drops a zero temperature from the request body, so send
		// the smallest value that still serializes.
		Temperature: math.SmallestNonzeroFloat32,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(entityType, entity, candidates)},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Verdict{}, fmt.Errorf("tiebreak completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, errors.New("tiebreak completion returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	verdict := ParseVerdict(raw, candidates)
	c.logger.Debug("tiebreak answered",
		"entity_type", entityType,
		"entity", entity.String("name"),
		"answer", strings.TrimSpace(raw),
		"match", verdict.Match)
	return verdict, nil
}

// Close implements Client.
func (c *OpenAIClient) Close() error {
	return nil
}
