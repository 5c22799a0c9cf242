package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"bookingsystem/internal/user/domain"
)

// ErrEmailTaken is surfaced when the unique constraint on users.email
// rejects a registration.
var ErrEmailTaken = errors.New("email is already registered")

type UserRepository interface {
	CreateTx(ctx context.Context, tx *sql.Tx, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetAll(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}
