package providers

import (
	"context"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to verification events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.VerificationEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.VerificationEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for verification event streams
const (
	// EventChannelVerificationUpdates is the channel for all verification updates
	EventChannelVerificationUpdates = "verification:updates"

	// EventChannelVerifierPrefix is the prefix for verifier-specific channels
	EventChannelVerifierPrefix = "verifier:"
)

// GetVerifierChannel returns the channel name for a specific verifier
func GetVerifierChannel(verifierID string) string {
	return EventChannelVerifierPrefix + verifierID
}
