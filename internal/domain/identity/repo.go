package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	// Create fails with apperr.ErrDuplicate when the email is taken.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	// ListByRole filters by a case-insensitive specialization substring when
	// specialization is non-empty.
	ListByRole(ctx context.Context, role, specialization string, limit, offset int) ([]*User, int, error)
}
