package repository

import (
	"context"

	"github.com/google/uuid"

	"tinytales/internal/models"
)

// StoryRepository is the persistence port for story aggregates.
// Implementations return models.ErrStoryNotFound for missing IDs.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error)
	Update(ctx context.Context, story *models.Story) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListRecent(ctx context.Context, limit int) ([]*models.Story, error)
}
