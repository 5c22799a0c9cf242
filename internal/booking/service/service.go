package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bookingsystem/internal/booking/domain"
	"bookingsystem/internal/booking/repository"
	"bookingsystem/internal/booking/userclient"
	"bookingsystem/internal/events"
	"bookingsystem/internal/outbox"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserNotActive = errors.New("user is not active")
	ErrInvalidID     = errors.New("invalid id")
)

// UserValidator checks that a user exists and may create bookings.
type UserValidator interface {
	GetUser(ctx context.Context, id uuid.UUID) (*userclient.User, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResponse, error)
	GetBooking(ctx context.Context, id string) (*BookingResponse, error)
	GetBookingsByUser(ctx context.Context, userID string) ([]*BookingResponse, error)
	GetAllBookings(ctx context.Context) ([]*BookingResponse, error)
	ConfirmBooking(ctx context.Context, id string) (*BookingResponse, error)
	CancelBooking(ctx context.Context, id string) (*BookingResponse, error)
	CompleteBooking(ctx context.Context, id string) (*BookingResponse, error)
}

type bookingService struct {
	db         *sql.DB
	bookings   repository.BookingRepository
	outboxRepo outbox.Repository
	users      UserValidator
	logger     *zap.Logger
}

func NewBookingService(
	db *sql.DB,
	bookings repository.BookingRepository,
	outboxRepo outbox.Repository,
	users UserValidator,
	logger *zap.Logger,
) BookingService {
	return &bookingService{
		db:         db,
		bookings:   bookings,
		outboxRepo: outboxRepo,
		users:      users,
		logger:     logger,
	}
}

// CreateBooking validates the user, then writes the booking row and its
// BookingCreatedEvent outbox row in one transaction. Either both commit or
// neither does; the relay takes it from there.
func (s *bookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResponse, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, req.UserID)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, userclient.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("Failed to validate user", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, fmt.Errorf("failed to validate user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserNotActive
	}

	booking, err := domain.NewBooking(user.UserID, user.Email, user.FullName, req.Description, req.Amount, req.BookingDate)
	if err != nil {
		return nil, err
	}

	event := events.BookingCreatedEvent{
		BookingID:    booking.ID.String(),
		UserID:       booking.UserID.String(),
		UserEmail:    booking.UserEmail,
		UserFullName: booking.UserFullName,
		Description:  booking.Description,
		Amount:       booking.Amount,
		BookingDate:  booking.BookingDate,
		CreatedAt:    booking.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal booking created event", zap.String("booking_id", booking.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to marshal booking created event: %w", err)
	}

	if err := s.createBookingTx(ctx, booking, outbox.NewMessage(events.TypeBookingCreated, payload)); err != nil {
		return nil, err
	}

	s.logger.Info("Booking created and event queued in outbox",
		zap.String("booking_id", booking.ID.String()),
		zap.String("user_id", booking.UserID.String()),
	)
	return mapBookingToResponse(booking), nil
}

func (s *bookingService) createBookingTx(ctx context.Context, booking *domain.Booking, msg *outbox.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := s.bookings.CreateTx(ctx, tx, booking); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := s.outboxRepo.Append(ctx, tx, msg); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking transaction: %w", err)
	}
	return nil
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*BookingResponse, error) {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return mapBookingToResponse(booking), nil
}

func (s *bookingService) GetBookingsByUser(ctx context.Context, userID string) ([]*BookingResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, userID)
	}
	bookings, err := s.bookings.GetByUserID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapBookingsToResponse(bookings), nil
}

func (s *bookingService) GetAllBookings(ctx context.Context) ([]*BookingResponse, error) {
	bookings, err := s.bookings.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return mapBookingsToResponse(bookings), nil
}

func (s *bookingService) ConfirmBooking(ctx context.Context, id string) (*BookingResponse, error) {
	return s.transition(ctx, id, (*domain.Booking).Confirm)
}

func (s *bookingService) CancelBooking(ctx context.Context, id string) (*BookingResponse, error) {
	return s.transition(ctx, id, (*domain.Booking).Cancel)
}

func (s *bookingService) CompleteBooking(ctx context.Context, id string) (*BookingResponse, error) {
	return s.transition(ctx, id, (*domain.Booking).Complete)
}

func (s *bookingService) transition(ctx context.Context, id string, apply func(*domain.Booking) error) (*BookingResponse, error) {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := apply(booking); err != nil {
		return nil, err
	}
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, err
	}
	s.logger.Info("Booking status changed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("status", string(booking.Status)),
	)
	return mapBookingToResponse(booking), nil
}
