package triage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCompleter is a mock implementation of llm.Completer
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	args := m.Called(ctx, prompt, temperature)
	return args.String(0), args.Error(1)
}

func (m *MockCompleter) CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string, temperature float32) (string, error) {
	args := m.Called(ctx, prompt, image, mimeType, temperature)
	return args.String(0), args.Error(1)
}
