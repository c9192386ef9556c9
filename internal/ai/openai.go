package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"tinytales/internal/config"
	"tinytales/internal/models"
)

// openAIClient implements Client on top of go-openai. Any OpenAI-compatible
// endpoint works (OpenRouter etc.) via AI_BASE_URL.
type openAIClient struct {
	client     *openaigo.Client
	model      string
	imageModel string
	logger     *zap.Logger
}

func newOpenAIClient(cfg *config.Config) *openAIClient {
	clientCfg := openaigo.DefaultConfig(cfg.AIAPIKey)
	clientCfg.BaseURL = cfg.AIBaseURL
	clientCfg.HTTPClient = &http.Client{
		Timeout: cfg.AITimeout,
	}

	return &openAIClient{
		client:     openaigo.NewClientWithConfig(clientCfg),
		model:      cfg.AIModel,
		imageModel: cfg.AIImageModel,
		logger:     zap.NewNop(),
	}
}

// WithLogger replaces the client's logger. Used by the wiring in main.
func (c *openAIClient) WithLogger(logger *zap.Logger) *openAIClient {
	c.logger = logger.Named("OpenAIClient")
	return c
}

func (c *openAIClient) GenerateText(ctx context.Context, messages []Message, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}

	if len(messages) == 0 {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: no messages", models.ErrAIGenerationFailed)
	}

	chatMessages := make([]openaigo.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openaigo.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openaigo.ChatCompletionRequest{
			Model:       c.model,
			Messages:    chatMessages,
			Temperature: float32Val(params.Temperature),
			MaxTokens:   intVal(params.MaxTokens),
			TopP:        float32Val(params.TopP),
		},
	)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("OpenAI chat completion failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "error"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("OpenAI returned an empty response", zap.Duration("duration", duration))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "error_empty_response"}).Inc()
		return "", usage, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, models.ErrEmptyModelResponse)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "success"}).Inc()
	aiRequestDuration.WithLabelValues(c.model, "chat").Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
		aiPromptTokens.WithLabelValues(c.model).Observe(float64(resp.Usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(c.model).Observe(float64(resp.Usage.CompletionTokens))
	}

	generated := resp.Choices[0].Message.Content
	c.logger.Debug("OpenAI chat completion succeeded",
		zap.Duration("duration", duration),
		zap.Int("responseLength", len(generated)),
		zap.Int("totalTokens", usage.TotalTokens))

	return generated, usage, nil
}

// GenerateImage creates an illustration and returns its URL. A non-2xx
// response surfaces as an error; callers tolerate it with an empty URI.
func (c *openAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	startTime := time.Now()
	resp, err := c.client.CreateImage(ctx, openaigo.ImageRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   openaigo.CreateImageSize1024x1024,
	})
	duration := time.Since(startTime)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.imageModel, "kind": "image", "status": "error"}).Inc()
		return "", fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.imageModel, "kind": "image", "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("image generation failed: %w", models.ErrEmptyModelResponse)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.imageModel, "kind": "image", "status": "success"}).Inc()
	aiRequestDuration.WithLabelValues(c.imageModel, "image").Observe(duration.Seconds())

	return resp.Data[0].URL, nil
}
