package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tinytales/internal/models"
)

// SegmentGenerator is a testify mock for service.SegmentGenerator.
type SegmentGenerator struct {
	mock.Mock
}

func (m *SegmentGenerator) GenerateSegment(ctx context.Context, prefs models.StoryPreferences, previousSegments []string, lastChoice string) (*models.GeneratedSegment, error) {
	args := m.Called(ctx, prefs, previousSegments, lastChoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GeneratedSegment), args.Error(1)
}
