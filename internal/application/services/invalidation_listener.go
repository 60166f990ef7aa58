package services

import (
	"context"

	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/observability"
)

// RunInvalidationListener consumes the verification update stream and drops
// this instance's cached aggregates for the affected verifier. Peer instances
// publish on every transition, so caches converge without waiting out a TTL.
// Blocks until the context is cancelled or the bus closes the channel.
func RunInvalidationListener(ctx context.Context, bus providers.EventBus, invalidator CacheInvalidator) error {
	events, err := bus.Subscribe(ctx, providers.EventChannelVerificationUpdates)
	if err != nil {
		return err
	}

	logger := observability.GetLogger()
	logger.Info().Str("channel", providers.EventChannelVerificationUpdates).Msg("Cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			invalidator.InvalidateVerifier(ctx, event.VerifierID)
			logger.Debug().
				Str("event_id", event.ID).
				Str("event_type", string(event.EventType)).
				Str("verifier_id", event.VerifierID).
				Msg("Invalidated caches for verification event")
		}
	}
}
