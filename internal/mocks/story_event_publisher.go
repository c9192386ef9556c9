package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tinytales/internal/messaging"
)

// StoryEventPublisher is a testify mock for messaging.StoryEventPublisher.
type StoryEventPublisher struct {
	mock.Mock
}

func (m *StoryEventPublisher) PublishStoryEvent(ctx context.Context, event messaging.StoryEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *StoryEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
