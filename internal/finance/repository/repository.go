package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"bookingsystem/internal/finance/domain"
)

// ErrDuplicateBooking is returned by Create when another invoice already
// holds the booking id. The uniqueness constraint on the natural key is
// what makes concurrent duplicate deliveries safe; callers fall back to
// the existing invoice instead of treating this as a failure.
var ErrDuplicateBooking = errors.New("invoice already exists for booking")

type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Invoice, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	GetAll(ctx context.Context) ([]domain.Invoice, error)
}
