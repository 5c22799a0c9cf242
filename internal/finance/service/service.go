package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bookingsystem/internal/events"
	"bookingsystem/internal/finance/domain"
	"bookingsystem/internal/finance/repository"
)

var ErrInvalidID = errors.New("invalid id")

// CreateOutcome says whether CreateFromBooking actually created an invoice
// or recognized a duplicate delivery. A duplicate is an expected, frequent
// condition under at-least-once delivery, not an error.
type CreateOutcome int

const (
	OutcomeCreated CreateOutcome = iota
	OutcomeAlreadyExists
)

type InvoiceResponse struct {
	ID            string     `json:"id"`
	BookingID     string     `json:"booking_id"`
	InvoiceNumber string     `json:"invoice_number"`
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	DueDate       time.Time  `json:"due_date"`
}

type InvoiceService interface {
	CreateFromBooking(ctx context.Context, event *events.BookingCreatedEvent) (*domain.Invoice, CreateOutcome, error)
	GetInvoice(ctx context.Context, id string) (*InvoiceResponse, error)
	GetInvoiceByBooking(ctx context.Context, bookingID string) (*InvoiceResponse, error)
	GetInvoicesByUser(ctx context.Context, userID string) ([]*InvoiceResponse, error)
	GetAllInvoices(ctx context.Context) ([]*InvoiceResponse, error)
	MarkInvoicePaid(ctx context.Context, id string) (*InvoiceResponse, error)
}

type invoiceService struct {
	invoices repository.InvoiceRepository
	logger   *zap.Logger
}

func NewInvoiceService(invoices repository.InvoiceRepository, logger *zap.Logger) InvoiceService {
	return &invoiceService{invoices: invoices, logger: logger}
}

// CreateFromBooking is the idempotent consumer handler behind the
// booking-created subscription. The booking id is the natural dedup key:
// the guard lookup runs before any write, and the unique constraint on
// invoices.booking_id closes the race between two concurrent duplicate
// deliveries; the loser of the race returns the winner's invoice.
func (s *invoiceService) CreateFromBooking(ctx context.Context, event *events.BookingCreatedEvent) (*domain.Invoice, CreateOutcome, error) {
	bookingID, err := uuid.Parse(event.BookingID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: booking id %q", ErrInvalidID, event.BookingID)
	}
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: user id %q", ErrInvalidID, event.UserID)
	}

	existing, err := s.invoices.GetByBookingID(ctx, bookingID)
	if err == nil {
		s.logger.Info("Invoice already exists for booking, returning existing",
			zap.String("booking_id", event.BookingID),
			zap.String("invoice_id", existing.ID.String()),
		)
		return existing, OutcomeAlreadyExists, nil
	}
	if !errors.Is(err, domain.ErrInvoiceNotFound) {
		return nil, 0, fmt.Errorf("failed to check existing invoice: %w", err)
	}

	invoice := domain.NewInvoice(
		bookingID,
		userID,
		event.UserEmail,
		event.UserFullName,
		event.Description,
		event.Amount,
		event.BookingDate,
	)

	if err := s.invoices.Create(ctx, invoice); err != nil {
		if errors.Is(err, repository.ErrDuplicateBooking) {
			// Lost the race against a concurrent duplicate delivery.
			winner, getErr := s.invoices.GetByBookingID(ctx, bookingID)
			if getErr != nil {
				return nil, 0, fmt.Errorf("failed to load invoice after duplicate insert: %w", getErr)
			}
			s.logger.Info("Concurrent duplicate delivery detected, returning existing invoice",
				zap.String("booking_id", event.BookingID),
				zap.String("invoice_id", winner.ID.String()),
			)
			return winner, OutcomeAlreadyExists, nil
		}
		return nil, 0, err
	}

	s.logger.Info("Invoice created for booking",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("booking_id", event.BookingID),
	)
	return invoice, OutcomeCreated, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return mapInvoiceToResponse(invoice), nil
}

func (s *invoiceService) GetInvoiceByBooking(ctx context.Context, bookingID string) (*InvoiceResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, bookingID)
	}
	invoice, err := s.invoices.GetByBookingID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapInvoiceToResponse(invoice), nil
}

func (s *invoiceService) GetInvoicesByUser(ctx context.Context, userID string) ([]*InvoiceResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, userID)
	}
	invoices, err := s.invoices.GetByUserID(ctx, id)
	if err != nil {
		return nil, err
	}
	responses := make([]*InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		responses = append(responses, mapInvoiceToResponse(&invoices[i]))
	}
	return responses, nil
}

func (s *invoiceService) GetAllInvoices(ctx context.Context) ([]*InvoiceResponse, error) {
	invoices, err := s.invoices.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]*InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		responses = append(responses, mapInvoiceToResponse(&invoices[i]))
	}
	return responses, nil
}

func (s *invoiceService) MarkInvoicePaid(ctx context.Context, id string) (*InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := invoice.MarkPaid(); err != nil {
		return nil, err
	}
	if err := s.invoices.Update(ctx, invoice); err != nil {
		return nil, err
	}
	s.logger.Info("Invoice marked as paid", zap.String("invoice_id", invoice.ID.String()))
	return mapInvoiceToResponse(invoice), nil
}

func mapInvoiceToResponse(inv *domain.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		ID:            inv.ID.String(),
		BookingID:     inv.BookingID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.Amount,
		Status:        string(inv.Status),
		CreatedAt:     inv.CreatedAt,
		PaidAt:        inv.PaidAt,
		DueDate:       inv.DueDate,
	}
}
