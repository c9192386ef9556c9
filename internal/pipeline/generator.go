package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tinytales/internal/ai"
	"tinytales/internal/models"
	"tinytales/internal/prompt"
)

// defaultSegmentText replaces narrative text that came back empty or as
// undecodable structure. The reader always gets prose.
const defaultSegmentText = "A magical story unfolds..."

// Generator runs the generate-parse-evaluate retry loop for one segment.
// It owns no story state; callers pass prior context and persist the result.
type Generator struct {
	client     ai.Client
	prompts    *prompt.Builder
	eval       *Evaluator
	params     ai.GenerationParams
	maxRetries int
	logger     *zap.Logger
}

func NewGenerator(client ai.Client, prompts *prompt.Builder, eval *Evaluator, params ai.GenerationParams, maxRetries int, logger *zap.Logger) *Generator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Generator{
		client:     client,
		prompts:    prompts,
		eval:       eval,
		params:     params,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// GenerateSegment produces the next segment for a story. Every model
// response, usable or not, is recorded in RawModelOutputs. The result is one
// of: a segment with exactly two validated choices, an ending segment with
// no choices, or a fallback segment with deterministic choices. An error is
// returned only when no attempt yielded any narrative text.
func (g *Generator) GenerateSegment(ctx context.Context, prefs models.StoryPreferences, previousSegments []string, lastChoice string) (*models.GeneratedSegment, error) {
	var (
		rawOutputs []models.RawAttempt
		lastText   string
		lastErr    error
	)
	mustEnd := prompt.Conclusive(len(previousSegments))

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		messages := g.prompts.BuildSegmentMessages(prefs, previousSegments, lastChoice)
		content, _, err := g.client.GenerateText(ctx, messages, g.params)
		if err != nil {
			lastErr = err
			generationAttempts.WithLabelValues("error").Inc()
			g.logger.Warn("segment generation attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		rawOutputs = append(rawOutputs, models.RawAttempt{Text: content})
		parsed := ParseSegment(RawSegment{Text: content})

		text := parsed.Text
		if text == "" || strings.HasPrefix(text, "{") {
			text = defaultSegmentText
		}
		lastText = text

		if mustEnd {
			generationAttempts.WithLabelValues("ending").Inc()
			endingsDetected.Inc()
			return &models.GeneratedSegment{
				Text:            text,
				RawModelOutputs: rawOutputs,
				IsEnding:        true,
			}, nil
		}

		// A valid pair always wins: mid-story prose may mention sleep or
		// goodbyes without concluding the story.
		if validated := g.eval.Validate(parsed.Choices); len(validated) == 2 {
			generationAttempts.WithLabelValues("accepted").Inc()
			return &models.GeneratedSegment{
				Text:            text,
				Choices:         validated,
				ContextQuestion: parsed.ContextQuestion,
				RawModelOutputs: rawOutputs,
			}, nil
		}

		// No usable pair. A lone surviving choice can only be the
		// end-of-story marker; the parser collapses every other singleton.
		if IsEnding(text) || len(parsed.Choices) == 1 {
			generationAttempts.WithLabelValues("ending").Inc()
			endingsDetected.Inc()
			return &models.GeneratedSegment{
				Text:            text,
				RawModelOutputs: rawOutputs,
				IsEnding:        true,
			}, nil
		}

		generationAttempts.WithLabelValues("rejected").Inc()
		g.logger.Info("segment choices rejected, retrying",
			zap.Int("attempt", attempt),
			zap.Int("parsed_choices", len(parsed.Choices)))
	}

	if lastText == "" {
		if lastErr == nil {
			lastErr = models.ErrEmptyModelResponse
		}
		return nil, fmt.Errorf("%w: %v", models.ErrAIGenerationFailed, lastErr)
	}

	// Retries exhausted but the narrative is usable: keep the text and
	// substitute deterministic choices.
	fallbacksServed.Inc()
	g.logger.Warn("serving fallback choices after exhausted retries",
		zap.Int("attempts", g.maxRetries))
	return &models.GeneratedSegment{
		Text:            lastText,
		Choices:         GenerateFallbackChoices(lastText, len(previousSegments)),
		RawModelOutputs: rawOutputs,
		IsFallback:      true,
	}, nil
}
