package http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookingsystem/internal/booking/service"
)

func RegisterRoutes(r chi.Router, s service.BookingService, l *zap.Logger) {
	handler := NewBookingHandler(s, l.With(zap.String("component", "BookingHTTPHandler")))

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", handler.CreateBooking)
		r.Get("/", handler.GetAllBookings)
		r.Get("/{bookingID}", handler.GetBooking)
		r.Get("/user/{userID}", handler.GetBookingsByUser)
		r.Post("/{bookingID}/confirm", handler.ConfirmBooking)
		r.Post("/{bookingID}/cancel", handler.CancelBooking)
		r.Post("/{bookingID}/complete", handler.CompleteBooking)
	})
}
