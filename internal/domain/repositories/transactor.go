package repositories

import (
	"context"
)

// Transactor runs a function inside a single database transaction. The transaction
// travels in the context; repository methods called with that context execute
// against it, so a prescription transition, its workload counter update and the
// audit row commit or roll back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
