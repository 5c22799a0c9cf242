package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
)

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrAlreadyPaid      = errors.New("invoice is already paid")
	ErrInvoiceCancelled = errors.New("cancelled invoices cannot be paid")
	ErrCancelPaid       = errors.New("cannot cancel a paid invoice")
)

const paymentTerm = 30 * 24 * time.Hour

type Invoice struct {
	ID                 uuid.UUID
	BookingID          uuid.UUID
	UserID             uuid.UUID
	UserEmail          string
	UserFullName       string
	BookingDescription string
	Amount             float64
	BookingDate        time.Time
	InvoiceNumber      string
	Status             InvoiceStatus
	CreatedAt          time.Time
	PaidAt             *time.Time
	DueDate            time.Time
}

// NewInvoice builds a pending invoice for a booking. The booking id is the
// invoice's natural key: at most one invoice ever exists per booking.
func NewInvoice(bookingID, userID uuid.UUID, userEmail, userFullName, bookingDescription string, amount float64, bookingDate time.Time) *Invoice {
	now := time.Now().UTC()
	return &Invoice{
		ID:                 uuid.New(),
		BookingID:          bookingID,
		UserID:             userID,
		UserEmail:          userEmail,
		UserFullName:       userFullName,
		BookingDescription: bookingDescription,
		Amount:             amount,
		BookingDate:        bookingDate,
		InvoiceNumber:      generateInvoiceNumber(now),
		Status:             InvoiceStatusPending,
		CreatedAt:          now,
		DueDate:            now.Add(paymentTerm),
	}
}

func (i *Invoice) MarkPaid() error {
	switch i.Status {
	case InvoiceStatusPaid:
		return ErrAlreadyPaid
	case InvoiceStatusCancelled:
		return ErrInvoiceCancelled
	}
	now := time.Now().UTC()
	i.Status = InvoiceStatusPaid
	i.PaidAt = &now
	return nil
}

func (i *Invoice) Cancel() error {
	if i.Status == InvoiceStatusPaid {
		return ErrCancelPaid
	}
	i.Status = InvoiceStatusCancelled
	return nil
}

// MarkOverdue flips a pending invoice past its due date; any other state
// is left untouched.
func (i *Invoice) MarkOverdue() {
	if i.Status == InvoiceStatusPending && time.Now().UTC().After(i.DueDate) {
		i.Status = InvoiceStatusOverdue
	}
}

func generateInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}
