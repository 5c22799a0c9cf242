package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookingsystem/internal/finance/domain"
	"bookingsystem/internal/finance/service"
)

type InvoiceHandler struct {
	service service.InvoiceService
	logger  *zap.Logger
}

func NewInvoiceHandler(s service.InvoiceService, l *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{service: s, logger: l}
}

func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InvoiceHandler) GetInvoiceByBooking(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetInvoiceByBooking(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InvoiceHandler) GetInvoicesByUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetInvoicesByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InvoiceHandler) GetAllInvoices(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetAllInvoices(r.Context())
	if err != nil {
		h.logger.Error("Error listing invoices", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InvoiceHandler) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.MarkInvoicePaid(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyPaid), errors.Is(err, domain.ErrInvoiceCancelled):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InvoiceHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvoiceNotFound):
		http.Error(w, "Invoice not found", http.StatusNotFound)
	default:
		h.logger.Error("Error fetching invoice", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
