package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tinytales/internal/config"
	"tinytales/internal/models"
)

// ErrImageNotSupported is returned by backends without an image endpoint.
// The session manager treats it like any other illustration failure.
var ErrImageNotSupported = errors.New("image generation is not supported by this backend")

// ollamaClient implements Client against a local Ollama instance.
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg *config.Config) (*ollamaClient, error) {
	httpClient := &http.Client{
		Timeout: cfg.AITimeout,
	}

	// api.NewClient wants the base URL without the /v1 suffix.
	baseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", baseURL, err)
	}

	return &ollamaClient{
		client:  api.NewClient(parsedURL, httpClient),
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  zap.NewNop(),
	}, nil
}

// WithLogger replaces the client's logger. Used by the wiring in main.
func (c *ollamaClient) WithLogger(logger *zap.Logger) *ollamaClient {
	c.logger = logger.Named("OllamaClient")
	return c
}

func (c *ollamaClient) GenerateText(ctx context.Context, messages []Message, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}

	if len(messages) == 0 {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: no messages", models.ErrAIGenerationFailed)
	}

	chatMessages := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, api.Message{Role: m.Role, Content: m.Content})
	}

	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}

	req := &api.ChatRequest{
		Model:    c.model,
		Messages: chatMessages,
		Stream:   func(b bool) *bool { return &b }(false),
		Options:  options,
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		// Non-streaming mode delivers a single, complete response.
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Ollama chat timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		} else {
			c.logger.Warn("Ollama chat failed", zap.Duration("duration", duration), zap.Error(err))
		}
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, err)
	}

	if resp.Message.Content == "" {
		c.logger.Warn("Ollama returned an empty response", zap.Duration("duration", duration))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, models.ErrEmptyModelResponse)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "success"}).Inc()
	aiRequestDuration.WithLabelValues(c.model, "chat").Observe(duration.Seconds())

	usage.PromptTokens = resp.PromptEvalCount
	usage.CompletionTokens = resp.EvalCount
	usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	if usage.TotalTokens > 0 {
		aiPromptTokens.WithLabelValues(c.model).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(c.model).Observe(float64(usage.CompletionTokens))
	}

	return resp.Message.Content, usage, nil
}

// GenerateImage is not available on Ollama.
func (c *ollamaClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "", ErrImageNotSupported
}
