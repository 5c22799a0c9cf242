package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookingsystem/internal/booking/domain"
	"bookingsystem/internal/booking/service"
)

type BookingHandler struct {
	service service.BookingService
	logger  *zap.Logger
}

func NewBookingHandler(s service.BookingService, l *zap.Logger) *BookingHandler {
	return &BookingHandler{service: s, logger: l}
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateBooking", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateBooking(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
		case errors.Is(err, service.ErrUserNotActive),
			errors.Is(err, service.ErrInvalidID),
			errors.Is(err, domain.ErrEmptyDescription),
			errors.Is(err, domain.ErrNonPositiveAmount):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("Error creating booking", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetBooking(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingHandler) GetBookingsByUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetBookingsByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingHandler) GetAllBookings(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetAllBookings(r.Context())
	if err != nil {
		h.logger.Error("Error listing bookings", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.service.ConfirmBooking)
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.service.CancelBooking)
}

func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.service.CompleteBooking)
}

func (h *BookingHandler) applyTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*service.BookingResponse, error)) {
	res, err := op(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidID):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrBookingNotFound):
			http.Error(w, "Booking not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrNotPending),
			errors.Is(err, domain.ErrAlreadyCompleted),
			errors.Is(err, domain.ErrNotConfirmed):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("Error changing booking status", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *BookingHandler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrBookingNotFound):
		http.Error(w, "Booking not found", http.StatusNotFound)
	default:
		h.logger.Error("Error fetching booking", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
