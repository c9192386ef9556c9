package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tinytales/internal/ai"
)

// AIClient is a testify mock for ai.Client.
type AIClient struct {
	mock.Mock
}

func (m *AIClient) GenerateText(ctx context.Context, messages []ai.Message, params ai.GenerationParams) (string, ai.UsageInfo, error) {
	args := m.Called(ctx, messages, params)
	return args.String(0), args.Get(1).(ai.UsageInfo), args.Error(2)
}

func (m *AIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}
