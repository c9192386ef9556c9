package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tinytales/internal/ai"
	"tinytales/internal/cache"
	"tinytales/internal/messaging"
	"tinytales/internal/models"
	"tinytales/internal/prompt"
	"tinytales/internal/repository"
)

// SegmentGenerator produces the next story segment from preferences, prior
// narrative and the chosen branch. Implemented by pipeline.Generator.
type SegmentGenerator interface {
	GenerateSegment(ctx context.Context, prefs models.StoryPreferences, previousSegments []string, lastChoice string) (*models.GeneratedSegment, error)
}

// Options toggles optional story features.
type Options struct {
	ShowIllustrations bool
	PrefetchEnabled   bool
	PrefetchTimeout   time.Duration
}

// StoryService owns the story lifecycle: creation, branching, retrieval and
// deletion. Two concurrent choices on the same story are not serialized;
// the second write wins and the first reader refetches.
type StoryService struct {
	repo      repository.StoryRepository
	generator SegmentGenerator
	aiClient  ai.Client
	cache     cache.SegmentCache
	publisher messaging.StoryEventPublisher
	opts      Options
	logger    *zap.Logger
}

func NewStoryService(
	repo repository.StoryRepository,
	generator SegmentGenerator,
	aiClient ai.Client,
	segCache cache.SegmentCache,
	publisher messaging.StoryEventPublisher,
	opts Options,
	logger *zap.Logger,
) *StoryService {
	if opts.PrefetchTimeout <= 0 {
		opts.PrefetchTimeout = 2 * time.Minute
	}
	return &StoryService{
		repo:      repo,
		generator: generator,
		aiClient:  aiClient,
		cache:     segCache,
		publisher: publisher,
		opts:      opts,
		logger:    logger.Named("StoryService"),
	}
}

// CreateStory generates the opening segment and persists a new story.
func (s *StoryService) CreateStory(ctx context.Context, prefs models.StoryPreferences) (*models.Story, error) {
	if err := validatePreferences(prefs); err != nil {
		return nil, err
	}

	generated, err := s.generator.GenerateSegment(ctx, prefs, nil, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	story := &models.Story{
		ID:          uuid.New(),
		Preferences: prefs,
		Status:      models.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.appendSegment(ctx, story, generated)

	if err := s.repo.Create(ctx, story); err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.StoryEvent{Type: messaging.EventStoryCreated, StoryID: story.ID})
	if story.Status == models.StatusEnded {
		s.publish(ctx, messaging.StoryEvent{Type: messaging.EventStoryEnded, StoryID: story.ID})
	} else {
		s.prefetchNext(story)
	}

	s.logger.Info("Story created",
		zap.String("storyID", story.ID.String()),
		zap.Bool("fallback", generated.IsFallback),
		zap.Bool("ended", story.Status == models.StatusEnded))
	return story, nil
}

// MakeChoice applies the reader's branch selection and appends the next
// segment.
func (s *StoryService) MakeChoice(ctx context.Context, storyID uuid.UUID, choiceIndex int) (*models.Story, error) {
	story, err := s.repo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.Status == models.StatusEnded {
		return nil, models.ErrStoryEnded
	}

	current := story.CurrentSegment()
	if current == nil {
		return nil, fmt.Errorf("%w: story %s has no current segment", models.ErrInternalServer, storyID)
	}
	if choiceIndex < 0 || choiceIndex >= len(current.Choices) {
		return nil, fmt.Errorf("%w: index %d of %d", models.ErrInvalidChoice, choiceIndex, len(current.Choices))
	}
	choiceText := current.Choices[choiceIndex].Text
	priorIndex := story.CurrentSegmentIndex

	generated, ok := s.cache.Get(ctx, story.ID, priorIndex, choiceIndex)
	if ok {
		s.logger.Debug("Prefetched segment hit",
			zap.String("storyID", story.ID.String()),
			zap.Int("segmentIndex", priorIndex),
			zap.Int("choiceIndex", choiceIndex))
	} else {
		generated, err = s.generator.GenerateSegment(ctx, story.Preferences, story.SegmentTexts(), choiceText)
		if err != nil {
			return nil, err
		}
	}

	s.appendSegment(ctx, story, generated)
	story.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, story); err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateSegment(ctx, story.ID, priorIndex); err != nil {
		s.logger.Warn("Failed to invalidate prefetched segments", zap.Error(err))
	}

	if story.Status == models.StatusEnded {
		s.publish(ctx, messaging.StoryEvent{Type: messaging.EventStoryEnded, StoryID: story.ID, SegmentIndex: story.CurrentSegmentIndex, IsEnding: true})
	} else {
		s.publish(ctx, messaging.StoryEvent{Type: messaging.EventSegmentGenerated, StoryID: story.ID, SegmentIndex: story.CurrentSegmentIndex, IsFallback: generated.IsFallback})
		s.prefetchNext(story)
	}

	return story, nil
}

// GetStory returns the story aggregate.
func (s *StoryService) GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	return s.repo.GetByID(ctx, storyID)
}

// ListStories returns the most recently created stories.
func (s *StoryService) ListStories(ctx context.Context, limit int) ([]*models.Story, error) {
	return s.repo.ListRecent(ctx, limit)
}

// DeleteStory removes a story and its prefetched segments.
func (s *StoryService) DeleteStory(ctx context.Context, storyID uuid.UUID) error {
	story, err := s.repo.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, storyID); err != nil {
		return err
	}
	if err := s.cache.InvalidateSegment(ctx, storyID, story.CurrentSegmentIndex); err != nil {
		s.logger.Warn("Failed to invalidate prefetched segments", zap.Error(err))
	}
	s.publish(ctx, messaging.StoryEvent{Type: messaging.EventStoryDeleted, StoryID: storyID})
	return nil
}

// appendSegment converts a generated segment into a persisted page and
// advances the story, marking it ended when the segment concludes it.
func (s *StoryService) appendSegment(ctx context.Context, story *models.Story, generated *models.GeneratedSegment) {
	segment := models.StorySegment{
		Text:            generated.Text,
		Choices:         generated.Choices,
		ContextQuestion: generated.ContextQuestion,
		RawModelOutputs: generated.RawModelOutputs,
		IsFallback:      generated.IsFallback,
	}
	if s.opts.ShowIllustrations && s.aiClient != nil {
		segment.Illustration = s.generateIllustration(ctx, generated.Text)
	}

	story.Segments = append(story.Segments, segment)
	story.CurrentSegmentIndex = len(story.Segments) - 1

	if generated.IsEnding {
		story.Status = models.StatusEnded
		story.Ending = generated.Text
	}
}

// generateIllustration is best-effort: a failed image call never fails the
// segment.
func (s *StoryService) generateIllustration(ctx context.Context, segmentText string) string {
	url, err := s.aiClient.GenerateImage(ctx, prompt.SanitizeIllustrationPrompt(segmentText))
	if err != nil {
		s.logger.Warn("Illustration generation failed", zap.Error(err))
		return ""
	}
	return url
}

// prefetchNext speculatively generates the segment behind each open branch
// so the next choice resolves instantly. Runs detached from the request.
func (s *StoryService) prefetchNext(story *models.Story) {
	if !s.opts.PrefetchEnabled {
		return
	}
	current := story.CurrentSegment()
	if current == nil || len(current.Choices) == 0 {
		return
	}

	segmentIndex := story.CurrentSegmentIndex
	prefs := story.Preferences
	texts := story.SegmentTexts()
	choices := append([]models.Choice(nil), current.Choices...)
	storyID := story.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.PrefetchTimeout)
		defer cancel()

		for i, choice := range choices {
			generated, err := s.generator.GenerateSegment(ctx, prefs, texts, choice.Text)
			if err != nil {
				s.logger.Warn("Prefetch generation failed",
					zap.String("storyID", storyID.String()),
					zap.Int("choiceIndex", i),
					zap.Error(err))
				continue
			}
			if err := s.cache.Set(ctx, storyID, segmentIndex, i, generated); err != nil {
				s.logger.Warn("Prefetch cache write failed",
					zap.String("storyID", storyID.String()),
					zap.Int("choiceIndex", i),
					zap.Error(err))
			}
		}
	}()
}

func (s *StoryService) publish(ctx context.Context, event messaging.StoryEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStoryEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish story event", zap.String("type", event.Type), zap.Error(err))
	}
}

func validatePreferences(prefs models.StoryPreferences) error {
	if prefs.ChildName == "" {
		return fmt.Errorf("%w: childName is required", models.ErrBadRequest)
	}
	if prefs.Setting == "" {
		return fmt.Errorf("%w: setting is required", models.ErrBadRequest)
	}
	switch prefs.Mood {
	case "", models.MoodBedtime, models.MoodSilly, models.MoodBold, models.MoodCurious:
	default:
		return fmt.Errorf("%w: unknown mood %q", models.ErrBadRequest, prefs.Mood)
	}
	return nil
}
