package database

import (
	"context"
	"database/sql"

	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
	"github.com/medleaf/pharmacy-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medleaf/pharmacy-backend/pkg/errors"
)

type txKey struct{}

// queryRunner is satisfied by both *sql.DB and *sql.Tx, so adapters can execute
// against the ambient transaction when one is present
type queryRunner interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxManager implements repositories.Transactor on the PostgreSQL client
type TxManager struct {
	client *postgres.Client
}

// NewTxManager creates a new transaction manager
func NewTxManager(client *postgres.Client) repositories.Transactor {
	return &TxManager{client: client}
}

// WithinTx runs fn inside a single transaction. The transaction is carried in the
// context; adapter methods called with that context execute against it. Any error
// from fn rolls the whole transaction back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewConcurrencyConflictError("failed to commit transaction", err)
	}
	return nil
}

// runnerFor returns the ambient transaction when present, the pooled DB otherwise
func runnerFor(ctx context.Context, client *postgres.Client) queryRunner {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return client.DB()
}

// inTx reports whether ctx carries a transaction
func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}
