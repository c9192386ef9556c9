package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"tinytales/internal/database"
	"tinytales/internal/models"
)

type PgStoryRepositorySuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	repo      StoryRepository
}

func TestPgStoryRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PgStoryRepositorySuite))
}

func (s *PgStoryRepositorySuite) SetupSuite() {
	s.ctx = context.Background()
	logger := zap.NewNop()

	var err error
	s.container, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("tinytales_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	dsn, err := s.container.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(s.ctx, dsn)
	require.NoError(s.T(), err)

	require.NoError(s.T(), database.ApplyMigrations(dsn, logger))
	s.repo = NewPgStoryRepository(s.pool, logger)
}

func (s *PgStoryRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PgStoryRepositorySuite) newStory() *models.Story {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Story{
		ID: uuid.New(),
		Preferences: models.StoryPreferences{
			ChildName:      "Mia",
			FavoriteAnimal: "fox",
			Setting:        "an enchanted forest",
			Mood:           models.MoodBedtime,
		},
		Segments: []models.StorySegment{{
			Text: "Mia met a clever fox.",
			Choices: []models.Choice{
				{Text: "Enter the mysterious forest to find the ancient tree"},
				{Text: "Follow the sparkling path to the magical clearing"},
			},
			RawModelOutputs: []models.RawAttempt{{Text: "raw attempt"}},
		}},
		CurrentSegmentIndex: 0,
		Status:              models.StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *PgStoryRepositorySuite) TestCreateAndGet() {
	story := s.newStory()
	require.NoError(s.T(), s.repo.Create(s.ctx, story))

	loaded, err := s.repo.GetByID(s.ctx, story.ID)
	require.NoError(s.T(), err)
	s.Equal(story.ID, loaded.ID)
	s.Equal(story.Preferences, loaded.Preferences)
	s.Require().Len(loaded.Segments, 1)
	s.Equal(story.Segments[0].Choices, loaded.Segments[0].Choices)
	s.Equal(story.Segments[0].RawModelOutputs, loaded.Segments[0].RawModelOutputs)
	s.Equal(models.StatusActive, loaded.Status)
}

func (s *PgStoryRepositorySuite) TestUpdateAppendsSegment() {
	story := s.newStory()
	require.NoError(s.T(), s.repo.Create(s.ctx, story))

	story.Segments = append(story.Segments, models.StorySegment{
		Text: "And they all lived happily ever after.",
	})
	story.CurrentSegmentIndex = 1
	story.Status = models.StatusEnded
	story.Ending = story.Segments[1].Text
	story.UpdatedAt = time.Now().UTC()
	require.NoError(s.T(), s.repo.Update(s.ctx, story))

	loaded, err := s.repo.GetByID(s.ctx, story.ID)
	require.NoError(s.T(), err)
	s.Require().Len(loaded.Segments, 2)
	s.Equal(1, loaded.CurrentSegmentIndex)
	s.Equal(models.StatusEnded, loaded.Status)
	s.Equal(story.Ending, loaded.Ending)
}

func (s *PgStoryRepositorySuite) TestGetMissingReturnsNotFound() {
	_, err := s.repo.GetByID(s.ctx, uuid.New())
	s.ErrorIs(err, models.ErrStoryNotFound)
}

func (s *PgStoryRepositorySuite) TestUpdateMissingReturnsNotFound() {
	story := s.newStory()
	err := s.repo.Update(s.ctx, story)
	s.ErrorIs(err, models.ErrStoryNotFound)
}

func (s *PgStoryRepositorySuite) TestDelete() {
	story := s.newStory()
	require.NoError(s.T(), s.repo.Create(s.ctx, story))

	require.NoError(s.T(), s.repo.Delete(s.ctx, story.ID))

	_, err := s.repo.GetByID(s.ctx, story.ID)
	s.ErrorIs(err, models.ErrStoryNotFound)

	s.ErrorIs(s.repo.Delete(s.ctx, story.ID), models.ErrStoryNotFound)
}

func (s *PgStoryRepositorySuite) TestListRecent() {
	first := s.newStory()
	require.NoError(s.T(), s.repo.Create(s.ctx, first))
	second := s.newStory()
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(s.T(), s.repo.Create(s.ctx, second))

	stories, err := s.repo.ListRecent(s.ctx, 100)
	require.NoError(s.T(), err)
	s.GreaterOrEqual(len(stories), 2)

	var firstIdx, secondIdx int
	for i, st := range stories {
		if st.ID == first.ID {
			firstIdx = i
		}
		if st.ID == second.ID {
			secondIdx = i
		}
	}
	s.Less(secondIdx, firstIdx, "newer story should come first")
}
