package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

const workloadsTable = "verifier_workloads"

var workloadColumns = []interface{}{
	"verifier_id", "pending_count", "in_review_count", "total_verified",
	"total_approved", "total_rejected", "average_processing_time",
	"is_available", "max_daily_capacity", "current_daily_count", "updated_at",
}

// WorkloadAdapter implements the WorkloadRepository interface
type WorkloadAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewWorkloadAdapter creates a new workload adapter
func NewWorkloadAdapter(client *postgres.Client) repositories.WorkloadRepository {
	return &WorkloadAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a workload row for a newly provisioned verifier
func (a *WorkloadAdapter) Create(ctx context.Context, workload *entities.VerifierWorkload) error {
	row := goqu.Record{
		"verifier_id":             workload.VerifierID,
		"pending_count":           workload.PendingCount,
		"in_review_count":         workload.InReviewCount,
		"total_verified":          workload.TotalVerified,
		"total_approved":          workload.TotalApproved,
		"total_rejected":          workload.TotalRejected,
		"average_processing_time": workload.AverageProcessingTime,
		"is_available":            workload.IsAvailable,
		"max_daily_capacity":      workload.MaxDailyCapacity,
		"current_daily_count":     workload.CurrentDailyCount,
		"updated_at":              workload.UpdatedAt,
	}

	query, args, err := a.db.Insert(workloadsTable).Rows(row).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err = runnerFor(ctx, a.client).ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create workload", err)
	}
	return nil
}

// GetByVerifier retrieves the workload row for a verifier
func (a *WorkloadAdapter) GetByVerifier(ctx context.Context, verifierID string) (*entities.VerifierWorkload, error) {
	return a.getByVerifier(ctx, verifierID, false)
}

// GetByVerifierForUpdate retrieves the workload row under a row-level lock.
// The lock serializes concurrent capacity checks against the same verifier so
// two assignments cannot both observe spare capacity.
func (a *WorkloadAdapter) GetByVerifierForUpdate(ctx context.Context, verifierID string) (*entities.VerifierWorkload, error) {
	if !inTx(ctx) {
		return nil, apperrors.NewInternalError("GetByVerifierForUpdate requires a transaction", nil)
	}
	return a.getByVerifier(ctx, verifierID, true)
}

func (a *WorkloadAdapter) getByVerifier(ctx context.Context, verifierID string, forUpdate bool) (*entities.VerifierWorkload, error) {
	ds := a.db.Select(workloadColumns...).
		From(workloadsTable).
		Where(goqu.Ex{"verifier_id": verifierID})
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	workload := &entities.VerifierWorkload{}
	err = runnerFor(ctx, a.client).QueryRowContext(ctx, query, args...).Scan(
		&workload.VerifierID,
		&workload.PendingCount,
		&workload.InReviewCount,
		&workload.TotalVerified,
		&workload.TotalApproved,
		&workload.TotalRejected,
		&workload.AverageProcessingTime,
		&workload.IsAvailable,
		&workload.MaxDailyCapacity,
		&workload.CurrentDailyCount,
		&workload.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("workload for verifier %s not found", verifierID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get workload", err)
	}
	return workload, nil
}

// ApplyDelta applies counter increments atomically in a single statement.
// Counters are clamped at zero so a late or duplicate decrement cannot push a
// count negative; reconciliation repairs any residual drift.
func (a *WorkloadAdapter) ApplyDelta(ctx context.Context, verifierID string, delta repositories.WorkloadDelta) error {
	record := goqu.Record{
		"pending_count":       goqu.L("GREATEST(pending_count + ?, 0)", delta.Pending),
		"in_review_count":     goqu.L("GREATEST(in_review_count + ?, 0)", delta.InReview),
		"total_verified":      goqu.L("total_verified + ?", delta.Verified),
		"total_approved":      goqu.L("total_approved + ?", delta.Approved),
		"total_rejected":      goqu.L("total_rejected + ?", delta.Rejected),
		"current_daily_count": goqu.L("GREATEST(current_daily_count + ?, 0)", delta.Daily),
		"updated_at":          time.Now(),
	}
	if delta.AverageProcessingTime != nil {
		record["average_processing_time"] = *delta.AverageProcessingTime
	}

	query, args, err := a.db.Update(workloadsTable).
		Set(record).
		Where(goqu.Ex{"verifier_id": verifierID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delta query", err)
	}

	result, err := runnerFor(ctx, a.client).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to apply workload delta", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("workload for verifier %s not found", verifierID))
	}
	return nil
}

// SetAvailability flips the availability flag
func (a *WorkloadAdapter) SetAvailability(ctx context.Context, verifierID string, available bool) error {
	query, args, err := a.db.Update(workloadsTable).
		Set(goqu.Record{
			"is_available": available,
			"updated_at":   time.Now(),
		}).
		Where(goqu.Ex{"verifier_id": verifierID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build availability query", err)
	}

	result, err := runnerFor(ctx, a.client).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to set availability", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("workload for verifier %s not found", verifierID))
	}
	return nil
}

// Replace overwrites the counter columns, used by reconciliation write-back
func (a *WorkloadAdapter) Replace(ctx context.Context, workload *entities.VerifierWorkload) error {
	workload.UpdatedAt = time.Now()

	query, args, err := a.db.Update(workloadsTable).
		Set(goqu.Record{
			"pending_count":           workload.PendingCount,
			"in_review_count":         workload.InReviewCount,
			"total_verified":          workload.TotalVerified,
			"total_approved":          workload.TotalApproved,
			"total_rejected":          workload.TotalRejected,
			"average_processing_time": workload.AverageProcessingTime,
			"is_available":            workload.IsAvailable,
			"max_daily_capacity":      workload.MaxDailyCapacity,
			"current_daily_count":     workload.CurrentDailyCount,
			"updated_at":              workload.UpdatedAt,
		}).
		Where(goqu.Ex{"verifier_id": workload.VerifierID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build replace query", err)
	}

	result, err := runnerFor(ctx, a.client).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to replace workload", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("workload for verifier %s not found", workload.VerifierID))
	}
	return nil
}

// List retrieves all workload rows
func (a *WorkloadAdapter) List(ctx context.Context) ([]*entities.VerifierWorkload, error) {
	return a.list(ctx, nil)
}

// ListAvailable retrieves workload rows of available verifiers
func (a *WorkloadAdapter) ListAvailable(ctx context.Context) ([]*entities.VerifierWorkload, error) {
	return a.list(ctx, goqu.Ex{"is_available": true})
}

func (a *WorkloadAdapter) list(ctx context.Context, where goqu.Ex) ([]*entities.VerifierWorkload, error) {
	ds := a.db.Select(workloadColumns...).
		From(workloadsTable).
		Order(goqu.I("verifier_id").Asc())
	if where != nil {
		ds = ds.Where(where)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := runnerFor(ctx, a.client).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list workloads", err)
	}
	defer rows.Close()

	var workloads []*entities.VerifierWorkload
	for rows.Next() {
		workload := &entities.VerifierWorkload{}
		err := rows.Scan(
			&workload.VerifierID,
			&workload.PendingCount,
			&workload.InReviewCount,
			&workload.TotalVerified,
			&workload.TotalApproved,
			&workload.TotalRejected,
			&workload.AverageProcessingTime,
			&workload.IsAvailable,
			&workload.MaxDailyCapacity,
			&workload.CurrentDailyCount,
			&workload.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan workload", err)
		}
		workloads = append(workloads, workload)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate workloads", err)
	}
	return workloads, nil
}

// CountAvailable counts verifiers currently flagged available
func (a *WorkloadAdapter) CountAvailable(ctx context.Context) (int, error) {
	query, args, err := a.db.Select(goqu.L("COUNT(*)")).
		From(workloadsTable).
		Where(goqu.Ex{"is_available": true}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := runnerFor(ctx, a.client).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count available verifiers", err)
	}
	return count, nil
}

// ResetDailyCounts zeroes current_daily_count on every row
func (a *WorkloadAdapter) ResetDailyCounts(ctx context.Context) error {
	query, args, err := a.db.Update(workloadsTable).
		Set(goqu.Record{
			"current_daily_count": 0,
			"updated_at":          time.Now(),
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build reset query", err)
	}

	if _, err := runnerFor(ctx, a.client).ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to reset daily counts", err)
	}
	return nil
}
