package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"tinytales/internal/models"
)

// SegmentCache is a testify mock for cache.SegmentCache.
type SegmentCache struct {
	mock.Mock
}

func (m *SegmentCache) Get(ctx context.Context, storyID uuid.UUID, segmentIndex, choiceIndex int) (*models.GeneratedSegment, bool) {
	args := m.Called(ctx, storyID, segmentIndex, choiceIndex)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*models.GeneratedSegment), args.Bool(1)
}

func (m *SegmentCache) Set(ctx context.Context, storyID uuid.UUID, segmentIndex, choiceIndex int, seg *models.GeneratedSegment) error {
	args := m.Called(ctx, storyID, segmentIndex, choiceIndex, seg)
	return args.Error(0)
}

func (m *SegmentCache) InvalidateSegment(ctx context.Context, storyID uuid.UUID, segmentIndex int) error {
	args := m.Called(ctx, storyID, segmentIndex)
	return args.Error(0)
}
