package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/medleaf/pharmacy-backend/internal/application/services"
	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
)

func TestRunInvalidationListener(t *testing.T) {
	ctx := context.Background()

	t.Run("drops cached aggregates when a peer publishes a transition", func(t *testing.T) {
		// Arrange
		prescriptions := new(MockPrescriptionRepository)
		workloads := new(MockWorkloadRepository)
		cache := newMemCache()
		analytics := newTestAnalyticsService(prescriptions, workloads, cache)

		statusCounts := map[entities.VerificationStatus]int{
			entities.VerificationStatusPending: 2,
		}
		prescriptions.On("CountByStatus", mock.Anything).Return(statusCounts, nil).Twice()
		prescriptions.On("CountUrgentOpen", mock.Anything).Return(0, nil).Twice()
		prescriptions.On("CountOverdue", mock.Anything, mock.Anything).Return(0, nil).Twice()
		prescriptions.On("CountUnassigned", mock.Anything).Return(2, nil).Twice()

		// Warm the dashboard cache, then let a peer event flow through
		_, err := analytics.GetDashboard(ctx)
		assert.NoError(t, err)

		bus := newFakeEventBus()
		assert.NoError(t, bus.Publish(ctx, providers.EventChannelVerificationUpdates,
			entities.NewVerificationEvent("rx-1", "ver-1", entities.VerificationEventTypeAssigned, nil)))
		assert.NoError(t, bus.Close())

		// Act: the listener drains the channel and returns once the bus closes
		err = services.RunInvalidationListener(ctx, bus, analytics)
		assert.NoError(t, err)

		_, err = analytics.GetDashboard(ctx)

		// Assert: the second read recomputed instead of hitting the cache
		assert.NoError(t, err)
		prescriptions.AssertExpectations(t)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		// Arrange
		bus := newFakeEventBus()
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		// Act
		err := services.RunInvalidationListener(cancelled, bus, newTestAnalyticsService(
			new(MockPrescriptionRepository), new(MockWorkloadRepository), newMemCache()))

		// Assert
		assert.ErrorIs(t, err, context.Canceled)
	})
}
