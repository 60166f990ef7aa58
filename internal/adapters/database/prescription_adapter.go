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

const prescriptionsTable = "prescriptions"

var prescriptionColumns = []interface{}{
	"id", "customer_id", "verification_status", "priority_level", "is_urgent",
	"assigned_verifier", "image_url", "medication_hints", "uploaded_at",
	"assigned_at", "verification_date", "verification_notes",
	"clarification_requested", "customer_response", "created_at", "updated_at",
}

// PrescriptionAdapter implements the PrescriptionRepository interface
type PrescriptionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPrescriptionAdapter creates a new prescription adapter
func NewPrescriptionAdapter(client *postgres.Client) repositories.PrescriptionRepository {
	return &PrescriptionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new prescription record
func (a *PrescriptionAdapter) Create(ctx context.Context, record *entities.PrescriptionRecord) error {
	row := goqu.Record{
		"id":                      record.ID,
		"customer_id":             record.CustomerID,
		"verification_status":     record.Status,
		"priority_level":          record.PriorityLevel,
		"is_urgent":               record.IsUrgent,
		"assigned_verifier":       record.AssignedVerifier,
		"image_url":               record.ImageURL,
		"medication_hints":        record.MedicationHints,
		"uploaded_at":             record.UploadedAt,
		"assigned_at":             record.AssignedAt,
		"verification_date":       record.VerificationDate,
		"verification_notes":      record.VerificationNotes,
		"clarification_requested": record.ClarificationRequested,
		"customer_response":       record.CustomerResponse,
		"created_at":              record.CreatedAt,
		"updated_at":              record.UpdatedAt,
	}

	query, args, err := a.db.Insert(prescriptionsTable).Rows(row).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err = runnerFor(ctx, a.client).ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create prescription", err)
	}
	return nil
}

// GetByID retrieves a prescription record by ID
func (a *PrescriptionAdapter) GetByID(ctx context.Context, id string) (*entities.PrescriptionRecord, error) {
	return a.getByID(ctx, id, false)
}

// GetByIDForUpdate retrieves the prescription row under a row-level lock.
// Status transitions read through this so two concurrent assignments cannot
// both observe an assignable record.
func (a *PrescriptionAdapter) GetByIDForUpdate(ctx context.Context, id string) (*entities.PrescriptionRecord, error) {
	if !inTx(ctx) {
		return nil, apperrors.NewInternalError("GetByIDForUpdate requires a transaction", nil)
	}
	return a.getByID(ctx, id, true)
}

func (a *PrescriptionAdapter) getByID(ctx context.Context, id string, forUpdate bool) (*entities.PrescriptionRecord, error) {
	ds := a.db.Select(prescriptionColumns...).
		From(prescriptionsTable).
		Where(goqu.Ex{"id": id})
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	record, err := scanPrescription(runnerFor(ctx, a.client).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("prescription with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get prescription", err)
	}
	return record, nil
}

// Update persists changes to a prescription record
func (a *PrescriptionAdapter) Update(ctx context.Context, record *entities.PrescriptionRecord) error {
	record.UpdatedAt = time.Now()

	query, args, err := a.db.Update(prescriptionsTable).
		Set(goqu.Record{
			"verification_status":     record.Status,
			"priority_level":          record.PriorityLevel,
			"is_urgent":               record.IsUrgent,
			"assigned_verifier":       record.AssignedVerifier,
			"assigned_at":             record.AssignedAt,
			"verification_date":       record.VerificationDate,
			"verification_notes":      record.VerificationNotes,
			"clarification_requested": record.ClarificationRequested,
			"customer_response":       record.CustomerResponse,
			"updated_at":              record.UpdatedAt,
		}).
		Where(goqu.Ex{"id": record.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := runnerFor(ctx, a.client).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update prescription", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("prescription with id %s not found", record.ID))
	}
	return nil
}

// List retrieves prescription records matching the filter
func (a *PrescriptionAdapter) List(ctx context.Context, filter repositories.PrescriptionFilter) ([]*entities.PrescriptionRecord, error) {
	ds := a.db.Select(prescriptionColumns...).From(prescriptionsTable)

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"verification_status": filter.Status})
	}
	if filter.CustomerID != "" {
		ds = ds.Where(goqu.Ex{"customer_id": filter.CustomerID})
	}
	if filter.AssignedVerifier != "" {
		ds = ds.Where(goqu.Ex{"assigned_verifier": filter.AssignedVerifier})
	}
	if filter.IsUrgent != nil {
		ds = ds.Where(goqu.Ex{"is_urgent": *filter.IsUrgent})
	}
	if filter.UnassignedOnly {
		ds = ds.Where(goqu.Ex{"assigned_verifier": nil})
	}

	// Urgent first, then oldest upload first
	ds = ds.Order(goqu.I("is_urgent").Desc(), goqu.I("uploaded_at").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := runnerFor(ctx, a.client).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list prescriptions", err)
	}
	defer rows.Close()

	var records []*entities.PrescriptionRecord
	for rows.Next() {
		record, err := scanPrescription(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan prescription", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate prescriptions", err)
	}
	return records, nil
}

// CountByStatus returns record counts grouped by verification status
func (a *PrescriptionAdapter) CountByStatus(ctx context.Context) (map[entities.VerificationStatus]int, error) {
	query, args, err := a.db.Select("verification_status", goqu.L("COUNT(*)")).
		From(prescriptionsTable).
		GroupBy("verification_status").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build count query", err)
	}

	rows, err := runnerFor(ctx, a.client).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count by status", err)
	}
	defer rows.Close()

	counts := make(map[entities.VerificationStatus]int)
	for rows.Next() {
		var status entities.VerificationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan status count", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate status counts", err)
	}
	return counts, nil
}

// CountUrgentOpen counts urgent records that have not reached a decision
func (a *PrescriptionAdapter) CountUrgentOpen(ctx context.Context) (int, error) {
	return a.countWhere(ctx, goqu.Ex{
		"is_urgent": true,
		"verification_status": []string{
			string(entities.VerificationStatusPending),
			string(entities.VerificationStatusInReview),
			string(entities.VerificationStatusClarificationNeeded),
		},
	})
}

// CountOverdue counts records older than the threshold still awaiting a decision
func (a *PrescriptionAdapter) CountOverdue(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)
	return a.countWhere(ctx, goqu.Ex{
		"verification_status": []string{
			string(entities.VerificationStatusPending),
			string(entities.VerificationStatusInReview),
		},
		"uploaded_at": goqu.Op{"lt": cutoff},
	})
}

// CountUnassigned counts pending records with no verifier
func (a *PrescriptionAdapter) CountUnassigned(ctx context.Context) (int, error) {
	return a.countWhere(ctx, goqu.Ex{
		"verification_status": entities.VerificationStatusPending,
		"assigned_verifier":   nil,
	})
}

// CountByCustomerSince counts a customer's uploads since the given time
func (a *PrescriptionAdapter) CountByCustomerSince(ctx context.Context, customerID string, since time.Time) (int, error) {
	return a.countWhere(ctx, goqu.Ex{
		"customer_id": customerID,
		"uploaded_at": goqu.Op{"gte": since},
	})
}

// CountAssignedByStatus returns, for one verifier, assigned-record counts per status
func (a *PrescriptionAdapter) CountAssignedByStatus(ctx context.Context, verifierID string) (map[entities.VerificationStatus]int, error) {
	query, args, err := a.db.Select("verification_status", goqu.L("COUNT(*)")).
		From(prescriptionsTable).
		Where(goqu.Ex{"assigned_verifier": verifierID}).
		GroupBy("verification_status").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build count query", err)
	}

	rows, err := runnerFor(ctx, a.client).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count assigned by status", err)
	}
	defer rows.Close()

	counts := make(map[entities.VerificationStatus]int)
	for rows.Next() {
		var status entities.VerificationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan status count", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate status counts", err)
	}
	return counts, nil
}

// CountAssignedSince counts records assigned to the verifier at or after the given time
func (a *PrescriptionAdapter) CountAssignedSince(ctx context.Context, verifierID string, since time.Time) (int, error) {
	return a.countWhere(ctx, goqu.Ex{
		"assigned_verifier": verifierID,
		"assigned_at":       goqu.Op{"gte": since},
	})
}

// DecisionStats aggregates a verifier's lifetime decision totals and average
// processing time from decided records
func (a *PrescriptionAdapter) DecisionStats(ctx context.Context, verifierID string) (*repositories.DecisionStats, error) {
	query, args, err := a.db.Select(
		goqu.L("COUNT(*)"),
		goqu.L("COUNT(*) FILTER (WHERE verification_status = ?)", string(entities.VerificationStatusApproved)),
		goqu.L("COUNT(*) FILTER (WHERE verification_status = ?)", string(entities.VerificationStatusRejected)),
		goqu.L("COALESCE(AVG(EXTRACT(EPOCH FROM (verification_date - uploaded_at)) / 60), 0)"),
	).From(prescriptionsTable).
		Where(goqu.Ex{
			"assigned_verifier": verifierID,
			"verification_status": []string{
				string(entities.VerificationStatusApproved),
				string(entities.VerificationStatusRejected),
			},
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build stats query", err)
	}

	stats := &repositories.DecisionStats{}
	err = runnerFor(ctx, a.client).QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalVerified,
		&stats.TotalApproved,
		&stats.TotalRejected,
		&stats.AverageProcessingTime,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get decision stats", err)
	}
	return stats, nil
}

// CountDecidedSince counts a verifier's decisions at or after the given time
func (a *PrescriptionAdapter) CountDecidedSince(ctx context.Context, verifierID string, since time.Time) (int, error) {
	return a.countWhere(ctx, goqu.Ex{
		"assigned_verifier": verifierID,
		"verification_status": []string{
			string(entities.VerificationStatusApproved),
			string(entities.VerificationStatusRejected),
		},
		"verification_date": goqu.Op{"gte": since},
	})
}

// DecisionHourHistogram buckets a verifier's decisions since the given time by hour of day
func (a *PrescriptionAdapter) DecisionHourHistogram(ctx context.Context, verifierID string, since time.Time) ([24]int, error) {
	var histogram [24]int

	query, args, err := a.db.Select(
		goqu.L("EXTRACT(HOUR FROM verification_date)::int"),
		goqu.L("COUNT(*)"),
	).From(prescriptionsTable).
		Where(goqu.Ex{
			"assigned_verifier": verifierID,
			"verification_date": goqu.Op{"gte": since},
		}).
		GroupBy(goqu.L("EXTRACT(HOUR FROM verification_date)")).
		ToSQL()
	if err != nil {
		return histogram, apperrors.NewInternalError("failed to build histogram query", err)
	}

	rows, err := runnerFor(ctx, a.client).QueryContext(ctx, query, args...)
	if err != nil {
		return histogram, apperrors.NewInternalError("failed to query decision histogram", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			return histogram, apperrors.NewInternalError("failed to scan histogram row", err)
		}
		if hour >= 0 && hour < 24 {
			histogram[hour] = count
		}
	}
	if err := rows.Err(); err != nil {
		return histogram, apperrors.NewInternalError("failed to iterate histogram rows", err)
	}
	return histogram, nil
}

func (a *PrescriptionAdapter) countWhere(ctx context.Context, where goqu.Ex) (int, error) {
	query, args, err := a.db.Select(goqu.L("COUNT(*)")).
		From(prescriptionsTable).
		Where(where).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := runnerFor(ctx, a.client).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count prescriptions", err)
	}
	return count, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrescription(row rowScanner) (*entities.PrescriptionRecord, error) {
	record := &entities.PrescriptionRecord{}
	var assignedVerifier sql.NullString
	var assignedAt, verificationDate sql.NullTime
	var medicationHints, verificationNotes, clarificationRequested, customerResponse sql.NullString

	err := row.Scan(
		&record.ID,
		&record.CustomerID,
		&record.Status,
		&record.PriorityLevel,
		&record.IsUrgent,
		&assignedVerifier,
		&record.ImageURL,
		&medicationHints,
		&record.UploadedAt,
		&assignedAt,
		&verificationDate,
		&verificationNotes,
		&clarificationRequested,
		&customerResponse,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedVerifier.Valid {
		record.AssignedVerifier = &assignedVerifier.String
	}
	if assignedAt.Valid {
		record.AssignedAt = &assignedAt.Time
	}
	if verificationDate.Valid {
		record.VerificationDate = &verificationDate.Time
	}
	record.MedicationHints = medicationHints.String
	record.VerificationNotes = verificationNotes.String
	record.ClarificationRequested = clarificationRequested.String
	record.CustomerResponse = customerResponse.String

	return record, nil
}
