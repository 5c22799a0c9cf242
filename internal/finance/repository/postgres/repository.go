package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bookingsystem/internal/finance/domain"
	"bookingsystem/internal/finance/repository"
)

const uniqueViolation = "23505"

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (id, booking_id, user_id, user_email, user_full_name, booking_description,
			amount, booking_date, invoice_number, status, created_at, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		inv.ID,
		inv.BookingID,
		inv.UserID,
		inv.UserEmail,
		inv.UserFullName,
		inv.BookingDescription,
		inv.Amount,
		inv.BookingDate,
		inv.InvoiceNumber,
		inv.Status,
		inv.CreatedAt,
		inv.DueDate,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicateBooking
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	query := selectInvoices + ` WHERE id = $1`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice %s: %w", id, err)
	}
	return inv, nil
}

func (r *InvoiceRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Invoice, error) {
	query := selectInvoices + ` WHERE booking_id = $1`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice for booking %s: %w", bookingID, err)
	}
	return inv, nil
}

func (r *InvoiceRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Invoice, error) {
	query := selectInvoices + ` WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoices for user %s: %w", userID, err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}
	return invoices, nil
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	query := `
		UPDATE invoices
		SET status = $1, paid_at = $2
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, inv.Status, inv.PaidAt, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to update invoice %s: %w", inv.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for invoice update: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

func (r *InvoiceRepository) GetAll(ctx context.Context) ([]domain.Invoice, error) {
	query := selectInvoices + ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}
	return invoices, nil
}

const selectInvoices = `
	SELECT id, booking_id, user_id, user_email, user_full_name, booking_description,
		amount, booking_date, invoice_number, status, created_at, paid_at, due_date
	FROM invoices`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	var paidAt sql.NullTime
	err := row.Scan(
		&inv.ID,
		&inv.BookingID,
		&inv.UserID,
		&inv.UserEmail,
		&inv.UserFullName,
		&inv.BookingDescription,
		&inv.Amount,
		&inv.BookingDate,
		&inv.InvoiceNumber,
		&inv.Status,
		&inv.CreatedAt,
		&paidAt,
		&inv.DueDate,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	return inv, nil
}
