package events

import "time"

// Broker topology shared by producers and consumers. One durable topic
// exchange per event family, one durable queue per consumer group.
const (
	BookingEventsExchange = "booking-events"
	BookingCreatedKey     = "booking.created"

	UserEventsExchange = "user-events"
	UserCreatedKey     = "user.created"

	FinanceBookingCreatedQueue = "finance-booking-created"
)

// Event type discriminators stored in the outbox `type` column.
const (
	TypeBookingCreated = "BookingCreatedEvent"
	TypeUserCreated    = "UserCreatedEvent"
)

// BookingCreatedEvent is the integration envelope for a committed booking.
// Flat and versionless so producer and consumer can evolve independently.
type BookingCreatedEvent struct {
	BookingID    string    `json:"booking_id"`
	UserID       string    `json:"user_id"`
	UserEmail    string    `json:"user_email"`
	UserFullName string    `json:"user_full_name"`
	Description  string    `json:"description"`
	Amount       float64   `json:"amount"`
	BookingDate  time.Time `json:"booking_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserCreatedEvent is the integration envelope for a registered user.
type UserCreatedEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}
