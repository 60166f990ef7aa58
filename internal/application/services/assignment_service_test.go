package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/medleaf/pharmacy-backend/internal/application/services"
	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

// bulkFixture wires an AssignmentService over shared mocks. Single assignments
// go through the real verification path, so the repositories are stubbed for
// the whole flow.
type bulkFixture struct {
	prescriptions *MockPrescriptionRepository
	workloads     *MockWorkloadRepository
	activities    *MockActivityRepository
	users         *MockUserRepository
	service       *services.AssignmentService
}

func newBulkFixture() *bulkFixture {
	f := &bulkFixture{
		prescriptions: new(MockPrescriptionRepository),
		workloads:     new(MockWorkloadRepository),
		activities:    new(MockActivityRepository),
		users:         new(MockUserRepository),
	}
	verification := newTestVerificationService(f.prescriptions, f.workloads, f.activities, f.users, nil, nil)
	f.service = services.NewAssignmentService(f.prescriptions, f.workloads, verification, nil)
	return f
}

// stubWrites accepts the prescription update, delta and audit writes that every
// successful single assignment performs
func (f *bulkFixture) stubWrites() {
	f.prescriptions.On("Update", mock.Anything, mock.Anything).Return(nil)
	f.workloads.On("ApplyDelta", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.activities.On("Append", mock.Anything, mock.Anything).Return(nil)
}

// stubRecord serves the record for the batch preload and for the locked
// re-read inside the assignment transaction
func (f *bulkFixture) stubRecord(id string, record *entities.PrescriptionRecord) {
	f.prescriptions.On("GetByID", mock.Anything, id).Return(record, nil)
	f.prescriptions.On("GetByIDForUpdate", mock.Anything, id).Return(record, nil)
}

func batchRecord(id string, uploadedAgo time.Duration) *entities.PrescriptionRecord {
	record := pendingPrescription(id, "cust-1")
	record.UploadedAt = time.Now().Add(-uploadedAgo)
	return record
}

func TestAssignmentService_BulkAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("balanced strategy favors the least loaded verifier", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		r1 := batchRecord("rx-1", 3*time.Hour)
		r2 := batchRecord("rx-2", 2*time.Hour)
		r3 := batchRecord("rx-3", 1*time.Hour)

		idle := entities.NewVerifierWorkload("ver-a", 30)
		busy := entities.NewVerifierWorkload("ver-b", 30)
		busy.InReviewCount = 1

		// Expectations
		f.stubRecord("rx-1", r1)
		f.stubRecord("rx-2", r2)
		f.stubRecord("rx-3", r3)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{busy, idle}, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-a").Return(idle, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-b").Return(busy, nil)
		f.users.On("GetByID", mock.Anything, "ver-a").Return(activeVerifier("ver-a"), nil)
		f.users.On("GetByID", mock.Anything, "ver-b").Return(activeVerifier("ver-b"), nil)
		f.stubWrites()

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-1", "rx-2", "rx-3"}, services.StrategyBalanced)

		// Assert: idle verifier takes the first record, the tie after that goes
		// to the lower ID, then the load evens out
		assert.NoError(t, err)
		assert.Empty(t, result.Failed)
		assert.Equal(t, []services.AssignedItem{
			{PrescriptionID: "rx-1", VerifierID: "ver-a"},
			{PrescriptionID: "rx-2", VerifierID: "ver-a"},
			{PrescriptionID: "rx-3", VerifierID: "ver-b"},
		}, result.Assigned)
	})

	t.Run("urgent records are placed before older routine ones", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		routine := batchRecord("rx-old", 5*time.Hour)
		urgent := batchRecord("rx-urgent", 1*time.Hour)
		urgent.IsUrgent = true

		// Capacity for exactly one assignment
		only := entities.NewVerifierWorkload("ver-a", 1)

		f.stubRecord("rx-old", routine)
		f.stubRecord("rx-urgent", urgent)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{only}, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-a").Return(only, nil)
		f.users.On("GetByID", mock.Anything, "ver-a").Return(activeVerifier("ver-a"), nil)
		f.stubWrites()

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-old", "rx-urgent"}, services.StrategyBalanced)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, []services.AssignedItem{
			{PrescriptionID: "rx-urgent", VerifierID: "ver-a"},
		}, result.Assigned)
		assert.Equal(t, []services.FailedItem{
			{PrescriptionID: "rx-old", Reason: "no eligible verifier"},
		}, result.Failed)
	})

	t.Run("round robin cycles through verifiers", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		r1 := batchRecord("rx-1", 3*time.Hour)
		r2 := batchRecord("rx-2", 2*time.Hour)
		r3 := batchRecord("rx-3", 1*time.Hour)

		va := entities.NewVerifierWorkload("ver-a", 30)
		vb := entities.NewVerifierWorkload("ver-b", 30)

		f.stubRecord("rx-1", r1)
		f.stubRecord("rx-2", r2)
		f.stubRecord("rx-3", r3)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{va, vb}, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-a").Return(va, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-b").Return(vb, nil)
		f.users.On("GetByID", mock.Anything, "ver-a").Return(activeVerifier("ver-a"), nil)
		f.users.On("GetByID", mock.Anything, "ver-b").Return(activeVerifier("ver-b"), nil)
		f.stubWrites()

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-1", "rx-2", "rx-3"}, services.StrategyRoundRobin)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, []services.AssignedItem{
			{PrescriptionID: "rx-1", VerifierID: "ver-a"},
			{PrescriptionID: "rx-2", VerifierID: "ver-b"},
			{PrescriptionID: "rx-3", VerifierID: "ver-a"},
		}, result.Assigned)
	})

	t.Run("never places a verifier's own upload on them", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		own := pendingPrescription("rx-own", "ver-a")
		va := entities.NewVerifierWorkload("ver-a", 30)
		vb := entities.NewVerifierWorkload("ver-b", 30)

		f.stubRecord("rx-own", own)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{va, vb}, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-b").Return(vb, nil)
		f.users.On("GetByID", mock.Anything, "ver-b").Return(activeVerifier("ver-b"), nil)
		f.stubWrites()

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-own"}, services.StrategyBalanced)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, []services.AssignedItem{
			{PrescriptionID: "rx-own", VerifierID: "ver-b"},
		}, result.Assigned)
		f.workloads.AssertNotCalled(t, "GetByVerifierForUpdate", mock.Anything, "ver-a")
	})

	t.Run("reports decided records as failed without aborting the batch", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		decided := pendingPrescription("rx-done", "cust-1")
		decided.Status = entities.VerificationStatusApproved
		open := batchRecord("rx-open", time.Hour)

		va := entities.NewVerifierWorkload("ver-a", 30)

		f.stubRecord("rx-done", decided)
		f.stubRecord("rx-open", open)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{va}, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-a").Return(va, nil)
		f.users.On("GetByID", mock.Anything, "ver-a").Return(activeVerifier("ver-a"), nil)
		f.stubWrites()

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-done", "rx-open"}, services.StrategyBalanced)

		// Assert
		assert.NoError(t, err)
		assert.Len(t, result.Assigned, 1)
		assert.Len(t, result.Failed, 1)
		assert.Equal(t, "rx-done", result.Failed[0].PrescriptionID)
		assert.Contains(t, result.Failed[0].Reason, "approved")
	})

	t.Run("routes a clarification hold back to its holder", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		holder := "ver-b"
		held := batchRecord("rx-clar", 4*time.Hour)
		held.Status = entities.VerificationStatusClarificationNeeded
		held.AssignedVerifier = &holder

		idle := entities.NewVerifierWorkload("ver-a", 30)
		holding := entities.NewVerifierWorkload("ver-b", 30)
		holding.PendingCount = 1
		holding.CurrentDailyCount = 3

		// Expectations: balanced order would try the idle verifier first, but a
		// hold may only resume on the verifier already carrying it
		f.stubRecord("rx-clar", held)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{idle, holding}, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-b").Return(holding, nil)
		f.users.On("GetByID", mock.Anything, "ver-b").Return(activeVerifier("ver-b"), nil)
		f.prescriptions.On("Update", mock.Anything, mock.Anything).Return(nil)
		f.workloads.On("ApplyDelta", mock.Anything, "ver-b", mock.MatchedBy(func(d repositories.WorkloadDelta) bool {
			return d.Pending == -1 && d.InReview == 1 && d.Daily == 0
		})).Return(nil)
		f.activities.On("Append", mock.Anything, mock.Anything).Return(nil)

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-clar"}, services.StrategyBalanced)

		// Assert
		assert.NoError(t, err)
		assert.Empty(t, result.Failed)
		assert.Equal(t, []services.AssignedItem{
			{PrescriptionID: "rx-clar", VerifierID: "ver-b"},
		}, result.Assigned)
		f.workloads.AssertNotCalled(t, "GetByVerifierForUpdate", mock.Anything, "ver-a")
		f.workloads.AssertExpectations(t)
	})

	t.Run("fails a hold whose holder is not available", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		holder := "ver-gone"
		held := batchRecord("rx-clar", 4*time.Hour)
		held.Status = entities.VerificationStatusClarificationNeeded
		held.AssignedVerifier = &holder

		other := entities.NewVerifierWorkload("ver-a", 30)

		f.stubRecord("rx-clar", held)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{other}, nil)

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-clar"}, services.StrategyBalanced)

		// Assert: the record fails rather than landing on a different verifier
		assert.NoError(t, err)
		assert.Equal(t, []services.FailedItem{
			{PrescriptionID: "rx-clar", Reason: "no eligible verifier"},
		}, result.Failed)
		f.workloads.AssertNotCalled(t, "GetByVerifierForUpdate", mock.Anything, mock.Anything)
	})

	t.Run("stops offering work to a verifier found full under lock", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		r1 := batchRecord("rx-1", 2*time.Hour)
		r2 := batchRecord("rx-2", time.Hour)

		// The view says the first verifier is free, but the locked read inside
		// the transaction finds them at capacity
		vaView := entities.NewVerifierWorkload("ver-a", 30)
		vaLocked := entities.NewVerifierWorkload("ver-a", 30)
		vaLocked.CurrentDailyCount = 30
		vb := entities.NewVerifierWorkload("ver-b", 30)
		vb.InReviewCount = 2

		f.stubRecord("rx-1", r1)
		f.stubRecord("rx-2", r2)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{vaView, vb}, nil)
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-a").Return(vaLocked, nil).Once()
		f.workloads.On("GetByVerifierForUpdate", mock.Anything, "ver-b").Return(vb, nil)
		f.users.On("GetByID", mock.Anything, "ver-a").Return(activeVerifier("ver-a"), nil)
		f.users.On("GetByID", mock.Anything, "ver-b").Return(activeVerifier("ver-b"), nil)
		f.stubWrites()

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-1", "rx-2"}, services.StrategyBalanced)

		// Assert: both records land on the second verifier and the full one is
		// only locked once; the stale view entry itself is left untouched
		assert.NoError(t, err)
		assert.Empty(t, result.Failed)
		assert.Equal(t, []services.AssignedItem{
			{PrescriptionID: "rx-1", VerifierID: "ver-b"},
			{PrescriptionID: "rx-2", VerifierID: "ver-b"},
		}, result.Assigned)
		assert.Zero(t, vaView.CurrentDailyCount)
		f.workloads.AssertExpectations(t)
	})

	t.Run("fails every record when no verifier is eligible", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		r1 := batchRecord("rx-1", time.Hour)

		f.stubRecord("rx-1", r1)
		f.workloads.On("ListAvailable", mock.Anything).Return([]*entities.VerifierWorkload{}, nil)

		// Act
		result, err := f.service.BulkAssign(ctx, []string{"rx-1"}, services.StrategyBalanced)

		// Assert: a fully failed batch is still a successful call
		assert.NoError(t, err)
		assert.Empty(t, result.Assigned)
		assert.Equal(t, []services.FailedItem{
			{PrescriptionID: "rx-1", Reason: "no eligible verifier"},
		}, result.Failed)
	})

	t.Run("rejects an unknown strategy", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		// Act
		_, err := f.service.BulkAssign(ctx, []string{"rx-1"}, "random")

		// Assert
		assert.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("rejects an empty batch", func(t *testing.T) {
		// Arrange
		f := newBulkFixture()

		// Act
		_, err := f.service.BulkAssign(ctx, nil, services.StrategyBalanced)

		// Assert
		assert.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}
