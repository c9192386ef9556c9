package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"tinytales/internal/ai"
	"tinytales/internal/models"
)

// Page thresholds after which the prompt demands a conclusion. With the
// defaults the fourth page always closes the story.
const (
	finalSegmentThreshold = 2
	mustEndThreshold      = 3
)

const fallbackEncoding = "cl100k_base"

// Builder assembles the chat messages for a segment generation call and
// trims prior-segment context to a token budget.
type Builder struct {
	tokenBudget int
	encoder     *tiktoken.Tiktoken
	logger      *zap.Logger
}

// NewBuilder creates a Builder for the given model. The tokenizer falls back
// to cl100k_base when the model is unknown to tiktoken (e.g. Ollama models).
func NewBuilder(model string, tokenBudget int, logger *zap.Logger) *Builder {
	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("No tiktoken encoding for model, falling back",
			zap.String("model", model), zap.String("fallback", fallbackEncoding), zap.Error(err))
		encoder, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			// Without a tokenizer the budget degrades to a character count.
			logger.Warn("Failed to load fallback encoding, using character estimate", zap.Error(err))
			encoder = nil
		}
	}
	return &Builder{
		tokenBudget: tokenBudget,
		encoder:     encoder,
		logger:      logger.Named("PromptBuilder"),
	}
}

// Conclusive reports whether the prompt for the given history length demands
// an ending without choices.
func Conclusive(previousSegmentCount int) bool {
	return previousSegmentCount >= mustEndThreshold
}

// BuildSegmentMessages produces the message list for one generation attempt:
// system prompt, prior segments as assistant turns (trimmed to the token
// budget, oldest dropped first), the chosen branch, and the continue/ending
// instruction.
func (b *Builder) BuildSegmentMessages(prefs models.StoryPreferences, previousSegments []string, lastChoice string) []ai.Message {
	isFinalSegment := len(previousSegments) >= finalSegmentThreshold
	mustEndNow := len(previousSegments) >= mustEndThreshold

	systemPrompt := b.buildSystemPrompt(prefs, isFinalSegment, mustEndNow)

	trimmed := b.trimToBudget(previousSegments, systemPrompt)

	messages := make([]ai.Message, 0, len(trimmed)+3)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	for _, text := range trimmed {
		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: text})
	}
	if lastChoice != "" {
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: fmt.Sprintf("The child chose: %s", lastChoice)})
	}

	instruction := "Continue the story with a new segment."
	if isFinalSegment {
		instruction = "Create a satisfying ending for the story."
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: instruction})

	return messages
}

func (b *Builder) buildSystemPrompt(prefs models.StoryPreferences, isFinalSegment, mustEndNow bool) string {
	characterText := ""
	if len(prefs.Characters) > 0 {
		characterText = fmt.Sprintf("The story should also feature these characters: %s.", strings.Join(prefs.Characters, ", "))
	}
	lessonText := ""
	if prefs.LifeLesson != "" {
		lessonText = fmt.Sprintf("Include a message that teaches the value of %s.", strings.ToLower(prefs.LifeLesson))
	}

	endingPrompt := ""
	if mustEndNow {
		endingPrompt = "This story must end now. Provide a final, happy ending. Do not provide any choices."
	} else if isFinalSegment {
		endingPrompt = "This is the final segment. End the story with a happy conclusion. Do not provide any choices."
	}

	moodPrompt := ""
	switch prefs.Mood {
	case models.MoodBedtime:
		moodPrompt = "Write the story in a calm, gentle, soothing bedtime tone. Use soft vocabulary and a peaceful pace."
	case models.MoodSilly:
		moodPrompt = "Write the story in a funny, wacky, and playful tone. Use silly words and lots of energy."
	case models.MoodBold:
		moodPrompt = "Write the story in a bold, adventurous, and brave tone. Use exciting vocabulary and action-packed pacing."
	case models.MoodCurious:
		moodPrompt = "Write the story in a mysterious, thoughtful, and discovery-focused tone. Encourage curiosity and wonder."
	}

	animalText := ""
	if prefs.FavoriteAnimal != "" {
		animalText = fmt.Sprintf(" and their favorite animal, %s", prefs.FavoriteAnimal)
	}

	segmentInstruction := endingPrompt
	if segmentInstruction == "" {
		segmentInstruction = "Generate a short, engaging segment."
	}

	choicesInstruction := ""
	if endingPrompt == "" {
		choicesInstruction = `At the end of each segment, provide two clear, actionable choices as an array, e.g. ["Explore the cave", "Climb the tree"].`
	}

	return fmt.Sprintf(`You are a friendly narrator for children aged 4-9.
IMPORTANT: Your response MUST be a valid JSON object with EXACTLY this structure:
{
  "story": "Your story text here without any JSON or formatting characters",
  "choices": ["First specific choice", "Second specific choice"]
}

%s
The story should be set in %s and feature %s%s.
%s %s
%s
%s

Choices MUST be specific to the story context and NEVER generic like "Continue the adventure" or "Take a different path".
DO NOT include any text outside the JSON structure.
DO NOT include the choices in the story text.
DO NOT use markdown or special formatting.
DO NOT nest the choices object - it must be a simple array of strings.`,
		segmentInstruction, prefs.Setting, prefs.ChildName, animalText,
		characterText, lessonText, moodPrompt, choicesInstruction)
}

// trimToBudget drops the oldest prior segments until system prompt plus
// history fits the token budget. The most recent segment is always kept.
func (b *Builder) trimToBudget(previousSegments []string, systemPrompt string) []string {
	if b.tokenBudget <= 0 || len(previousSegments) == 0 {
		return previousSegments
	}

	total := b.countTokens(systemPrompt)
	for _, s := range previousSegments {
		total += b.countTokens(s)
	}

	trimmed := previousSegments
	for total > b.tokenBudget && len(trimmed) > 1 {
		total -= b.countTokens(trimmed[0])
		trimmed = trimmed[1:]
	}

	if len(trimmed) != len(previousSegments) {
		b.logger.Debug("Trimmed prior segments to fit token budget",
			zap.Int("kept", len(trimmed)), zap.Int("dropped", len(previousSegments)-len(trimmed)))
	}

	return trimmed
}

func (b *Builder) countTokens(s string) int {
	if b.encoder == nil {
		// Rough estimate: four characters per token.
		return len(s) / 4
	}
	return len(b.encoder.Encode(s, nil, nil))
}

var illustrationStripRe = regexp.MustCompile("[\"*#^_`~$%{}<>|\\\\]")
var whitespaceRe = regexp.MustCompile(`\s+`)

// SanitizeIllustrationPrompt prepares story text for the image endpoint:
// newlines and markup characters removed, length capped, framing prefix added.
func SanitizeIllustrationPrompt(storyText string) string {
	safe := strings.ReplaceAll(storyText, "\n", " ")
	safe = illustrationStripRe.ReplaceAllString(safe, "")
	safe = whitespaceRe.ReplaceAllString(safe, " ")
	safe = strings.TrimSpace(safe)
	if runes := []rune(safe); len(runes) > 250 {
		safe = string(runes[:250])
	}
	return "Create a child-friendly illustration for a story: " + safe
}
