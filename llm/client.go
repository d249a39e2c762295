package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoMessages indicates a completion request with an empty conversation.
	ErrNoMessages = errors.New("llm: completion request has no messages")

	// ErrInvalidMessage indicates a message whose content is empty or whose
	// role is unknown.
	ErrInvalidMessage = errors.New("llm: invalid message")

	// ErrEmptyResponse indicates the model returned no text content.
	ErrEmptyResponse = errors.New("llm: model returned an empty response")
)

// Client is the minimal language model surface the query pipeline depends on.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends the conversation and returns the model's reply. The
	// context governs the whole round trip.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Model returns the model identifier requests are sent to.
	Model() string
}

func validateRequest(req *CompletionRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return ErrNoMessages
	}
	for i, m := range req.Messages {
		if !m.IsValid() {
			return fmt.Errorf("%w: message %d (role %q)", ErrInvalidMessage, i, m.Role)
		}
	}
	return nil
}
