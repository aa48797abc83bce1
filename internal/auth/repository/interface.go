package repository

import (
	"context"

	"github.com/google/uuid"
)

// UserReader is the read side used by adapters in other domains.
type UserReader interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)
	ResolveUser(ctx context.Context, ref string) (User, error)
}

// AuthRepository defines the interface for authentication data operations.
type AuthRepository interface {
	UserReader
	CreateUser(ctx context.Context, p CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetUserRole(ctx context.Context, userID uuid.UUID, role string) error
	UpdatePreferences(ctx context.Context, userID uuid.UUID, p PreferencesParams) (User, error)
}

// Ensure Repository implements AuthRepository
var _ AuthRepository = (*Repository)(nil)
