package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"bookingsystem/internal/booking/domain"
)

type BookingRepository interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *domain.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	GetAll(ctx context.Context) ([]domain.Booking, error)
	Update(ctx context.Context, b *domain.Booking) error
}
