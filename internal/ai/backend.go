package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/biasharahub/biashara/internal/models"
)

var (
	ErrEmptyCompletion = fmt.Errorf("%w: empty completion", models.ErrBackendGeneration)
	ErrNotConfigured   = errors.New("ai backend is not configured")
)

// Prompt is a backend-neutral completion request.
type Prompt struct {
	System    string
	Messages  []Message
	MaxTokens int
	// JSON asks the backend for a single JSON object.
	JSON bool
}

// Backend is a black-box text completion service.
type Backend interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}
