package http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookingsystem/internal/finance/service"
)

func RegisterRoutes(r chi.Router, s service.InvoiceService, l *zap.Logger) {
	handler := NewInvoiceHandler(s, l.With(zap.String("component", "InvoiceHTTPHandler")))

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", handler.GetAllInvoices)
		r.Get("/{invoiceID}", handler.GetInvoice)
		r.Get("/booking/{bookingID}", handler.GetInvoiceByBooking)
		r.Get("/user/{userID}", handler.GetInvoicesByUser)
		r.Post("/{invoiceID}/pay", handler.MarkInvoicePaid)
	})
}
