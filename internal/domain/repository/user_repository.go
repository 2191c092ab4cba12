package repository

import (
	"context"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
)

// UserRepository persists user aggregates.
//
// Find methods return errs.ErrNotFound when nothing matches. Create and Update
// return *errs.DuplicateError when identifier or email collide, and wrap
// storage outages with errs.Unavailable.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) (*entity.User, error)
	// Delete deactivates the user and returns the deactivated record.
	Delete(ctx context.Context, identifier string) (*entity.User, error)
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// FindByIdentifier only returns active users.
	FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	// FindAll returns active users, newest first.
	FindAll(ctx context.Context) ([]*entity.User, error)
}
