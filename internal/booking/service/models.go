package service

import (
	"time"

	"bookingsystem/internal/booking/domain"
)

type CreateBookingRequest struct {
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	BookingDate time.Time `json:"booking_date"`
}

type BookingResponse struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	UserEmail    string     `json:"user_email"`
	UserFullName string     `json:"user_full_name"`
	Description  string     `json:"description"`
	Amount       float64    `json:"amount"`
	BookingDate  time.Time  `json:"booking_date"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func mapBookingToResponse(b *domain.Booking) *BookingResponse {
	return &BookingResponse{
		ID:           b.ID.String(),
		UserID:       b.UserID.String(),
		UserEmail:    b.UserEmail,
		UserFullName: b.UserFullName,
		Description:  b.Description,
		Amount:       b.Amount,
		BookingDate:  b.BookingDate,
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func mapBookingsToResponse(bookings []domain.Booking) []*BookingResponse {
	responses := make([]*BookingResponse, 0, len(bookings))
	for i := range bookings {
		responses = append(responses, mapBookingToResponse(&bookings[i]))
	}
	return responses
}
