package interfaces

import (
	"context"

	"ai-invest/internal/types"
)

// Completer sends chat messages to a model and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, messages []types.Message, opts ...types.CallOption) (string, error)
}
