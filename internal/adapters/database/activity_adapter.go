package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

const activitiesTable = "verification_activities"

// ActivityAdapter implements the VerificationActivityRepository interface.
// The table is append-only; there are no update or delete statements here.
type ActivityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewActivityAdapter creates a new activity adapter
func NewActivityAdapter(client *postgres.Client) repositories.VerificationActivityRepository {
	return &ActivityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Append writes a new activity row
func (a *ActivityAdapter) Append(ctx context.Context, activity *entities.VerificationActivity) error {
	row := goqu.Record{
		"id":              activity.ID,
		"prescription_id": activity.PrescriptionID,
		"verifier_id":     activity.VerifierID,
		"action":          activity.Action,
		"description":     activity.Description,
		"created_at":      activity.CreatedAt,
	}

	query, args, err := a.db.Insert(activitiesTable).Rows(row).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err = runnerFor(ctx, a.client).ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to append activity", err)
	}
	return nil
}

// ListByPrescription retrieves the audit trail for a prescription, newest first
func (a *ActivityAdapter) ListByPrescription(ctx context.Context, prescriptionID string, limit int) ([]*entities.VerificationActivity, error) {
	ds := a.db.Select("id", "prescription_id", "verifier_id", "action", "description", "created_at").
		From(activitiesTable).
		Where(goqu.Ex{"prescription_id": prescriptionID}).
		Order(goqu.I("created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := runnerFor(ctx, a.client).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list activities", err)
	}
	defer rows.Close()

	var activities []*entities.VerificationActivity
	for rows.Next() {
		activity := &entities.VerificationActivity{}
		var verifierID sql.NullString
		err := rows.Scan(
			&activity.ID,
			&activity.PrescriptionID,
			&verifierID,
			&activity.Action,
			&activity.Description,
			&activity.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan activity", err)
		}
		if verifierID.Valid {
			activity.VerifierID = &verifierID.String
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate activities", err)
	}
	return activities, nil
}
