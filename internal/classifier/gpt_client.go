package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrMissingAPIKey means no inference credential was configured
	ErrMissingAPIKey = errors.New("inference API key is not configured")
	// ErrUnauthorized means the inference service rejected the credential
	ErrUnauthorized = errors.New("inference API rejected the credentials")
	// ErrEmptyCompletion means the service answered without any choice
	ErrEmptyCompletion = errors.New("inference API returned no choices")
)

// GPTConfig configures an OpenAI-compatible completion endpoint
type GPTConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	Temperature    float64
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// GPTClient sends one-shot prompts to an OpenAI-compatible chat completion
// endpoint and returns the raw completion text.
type GPTClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTClient(cfg GPTConfig, logger *zap.Logger) (*GPTClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = normalizeBaseURL(cfg.BaseURL)
	}
	clientConfig.HTTPClient = newHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout)

	return &GPTClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// normalizeBaseURL strips a trailing slash and a "/chat/completions" suffix
// so the path is not doubled when the SDK appends it.
func normalizeBaseURL(raw string) string {
	s := strings.TrimRight(raw, "/")
	return strings.TrimSuffix(s, "/chat/completions")
}

// Complete sends prompt as a single user message. The call is not retried.
func (c *GPTClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		if isAuthError(err) {
			c.logger.Error("Inference authentication failed, check openai.api_key",
				zap.String("reason", "auth"),
				zap.String("model", c.model),
				zap.Error(err))
			return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		c.logger.Warn("Failed to get completion",
			zap.String("reason", "transport"),
			zap.String("model", c.model),
			zap.Error(err))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn("Completion had no choices", zap.String("model", c.model))
		return "", ErrEmptyCompletion
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Healthy performs a tiny completion to check the endpoint and credential
func (c *GPTClient) Healthy(ctx context.Context) error {
	text, err := c.Complete(ctx, "Respond with 'OK' if you can process this message.")
	if err != nil {
		return err
	}
	if text == "" {
		return ErrEmptyCompletion
	}
	return nil
}

func isAuthError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden
	}
	return false
}
