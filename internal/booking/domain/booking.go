package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrEmptyDescription  = errors.New("booking description must not be empty")
	ErrNonPositiveAmount = errors.New("booking amount must be positive")
	ErrNotPending        = errors.New("only pending bookings can be confirmed")
	ErrAlreadyCompleted  = errors.New("completed bookings cannot be cancelled")
	ErrNotConfirmed      = errors.New("only confirmed bookings can be completed")
)

type Booking struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	UserEmail    string
	UserFullName string
	Description  string
	Amount       float64
	BookingDate  time.Time
	Status       BookingStatus
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

func NewBooking(userID uuid.UUID, userEmail, userFullName, description string, amount float64, bookingDate time.Time) (*Booking, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	return &Booking{
		ID:           uuid.New(),
		UserID:       userID,
		UserEmail:    userEmail,
		UserFullName: userFullName,
		Description:  description,
		Amount:       amount,
		BookingDate:  bookingDate,
		Status:       BookingStatusPending,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (b *Booking) Confirm() error {
	if b.Status != BookingStatusPending {
		return ErrNotPending
	}
	b.Status = BookingStatusConfirmed
	b.touch()
	return nil
}

func (b *Booking) Cancel() error {
	if b.Status == BookingStatusCompleted {
		return ErrAlreadyCompleted
	}
	b.Status = BookingStatusCancelled
	b.touch()
	return nil
}

func (b *Booking) Complete() error {
	if b.Status != BookingStatusConfirmed {
		return ErrNotConfirmed
	}
	b.Status = BookingStatusCompleted
	b.touch()
	return nil
}

func (b *Booking) touch() {
	now := time.Now().UTC()
	b.UpdatedAt = &now
}
