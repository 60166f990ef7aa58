package repositories

import (
	"context"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
)

// UserRepository defines the interface for identity lookups. User registration and
// authentication are owned elsewhere; the verification core only reads identities
// and provisions verifier accounts.
type UserRepository interface {
	// Create persists a new user identity
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)
}
