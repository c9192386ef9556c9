package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tinytales/internal/models"
)

const (
	storyFields = `id, preferences, segments, current_segment_index, status, ending, created_at, updated_at`

	insertStoryQuery = `
        INSERT INTO stories
            (id, preferences, segments, current_segment_index, status, ending, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	updateStoryQuery = `
        UPDATE stories SET
            segments = $2,
            current_segment_index = $3,
            status = $4,
            ending = $5,
            updated_at = $6
        WHERE id = $1
    `
	getStoryByIDQuery = `
        SELECT ` + storyFields + `
        FROM stories
        WHERE id = $1
    `
	deleteStoryQuery = `DELETE FROM stories WHERE id = $1`

	listRecentStoriesQuery = `
        SELECT ` + storyFields + `
        FROM stories
        ORDER BY created_at DESC
        LIMIT $1
    `
)

// storyRow is the flat database shape; preferences and segments are JSONB.
type storyRow struct {
	ID                  uuid.UUID `db:"id"`
	Preferences         []byte    `db:"preferences"`
	Segments            []byte    `db:"segments"`
	CurrentSegmentIndex int       `db:"current_segment_index"`
	Status              string    `db:"status"`
	Ending              string    `db:"ending"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

var _ StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgStoryRepository creates the PostgreSQL story repository.
func NewPgStoryRepository(pool *pgxpool.Pool, logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{
		pool:   pool,
		logger: logger.Named("PgStoryRepo"),
	}
}

func (r *pgStoryRepository) Create(ctx context.Context, story *models.Story) error {
	row, err := toRow(story)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, insertStoryQuery,
		row.ID, row.Preferences, row.Segments, row.CurrentSegmentIndex,
		row.Status, row.Ending, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert story", zap.String("storyID", story.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert story: %w", err)
	}

	r.logger.Debug("Story inserted", zap.String("storyID", story.ID.String()))
	return nil
}

func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var row storyRow
	err := pgxscan.Get(ctx, r.pool, &row, getStoryByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return fromRow(&row)
}

func (r *pgStoryRepository) Update(ctx context.Context, story *models.Story) error {
	row, err := toRow(story)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, updateStoryQuery,
		row.ID, row.Segments, row.CurrentSegmentIndex, row.Status, row.Ending, row.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update story", zap.String("storyID", story.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}

	r.logger.Debug("Story updated",
		zap.String("storyID", story.ID.String()),
		zap.Int("segments", len(story.Segments)))
	return nil
}

func (r *pgStoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteStoryQuery, id)
	if err != nil {
		r.logger.Error("Failed to delete story", zap.String("storyID", id.String()), zap.Error(err))
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

func (r *pgStoryRepository) ListRecent(ctx context.Context, limit int) ([]*models.Story, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []*storyRow
	if err := pgxscan.Select(ctx, r.pool, &rows, listRecentStoriesQuery, limit); err != nil {
		r.logger.Error("Failed to list stories", zap.Error(err))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	stories := make([]*models.Story, 0, len(rows))
	for _, row := range rows {
		story, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}
	return stories, nil
}

func toRow(story *models.Story) (*storyRow, error) {
	prefs, err := json.Marshal(story.Preferences)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	segments, err := json.Marshal(story.Segments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal segments: %w", err)
	}
	return &storyRow{
		ID:                  story.ID,
		Preferences:         prefs,
		Segments:            segments,
		CurrentSegmentIndex: story.CurrentSegmentIndex,
		Status:              string(story.Status),
		Ending:              story.Ending,
		CreatedAt:           story.CreatedAt,
		UpdatedAt:           story.UpdatedAt,
	}, nil
}

func fromRow(row *storyRow) (*models.Story, error) {
	story := &models.Story{
		ID:                  row.ID,
		CurrentSegmentIndex: row.CurrentSegmentIndex,
		Status:              models.StoryStatus(row.Status),
		Ending:              row.Ending,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Preferences, &story.Preferences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	if err := json.Unmarshal(row.Segments, &story.Segments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
	}
	return story, nil
}
