package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingsystem/internal/finance/domain"
	"bookingsystem/internal/finance/repository"
)

func newMockRepo(t *testing.T) (*InvoiceRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewInvoiceRepository(db), mock
}

func testInvoice() *domain.Invoice {
	return domain.NewInvoice(uuid.New(), uuid.New(), "jane@example.com", "Jane Doe", "Room", 150.0, time.Now().UTC())
}

func invoiceColumns() []string {
	return []string{"id", "booking_id", "user_id", "user_email", "user_full_name", "booking_description",
		"amount", "booking_date", "invoice_number", "status", "created_at", "paid_at", "due_date"}
}

func invoiceRow(inv *domain.Invoice) []driver.Value {
	return []driver.Value{inv.ID.String(), inv.BookingID.String(), inv.UserID.String(), inv.UserEmail, inv.UserFullName,
		inv.BookingDescription, inv.Amount, inv.BookingDate, inv.InvoiceNumber, string(inv.Status), inv.CreatedAt, nil, inv.DueDate}
}

func TestCreate(t *testing.T) {
	t.Run("inserts the invoice", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		inv := testInvoice()

		mock.ExpectExec("INSERT INTO invoices").
			WithArgs(inv.ID, inv.BookingID, inv.UserID, inv.UserEmail, inv.UserFullName, inv.BookingDescription,
				inv.Amount, inv.BookingDate, inv.InvoiceNumber, string(inv.Status), inv.CreatedAt, inv.DueDate).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), inv))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a unique violation on booking_id to the duplicate sentinel", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("INSERT INTO invoices").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_invoices_booking_id"})

		err := repo.Create(context.Background(), testInvoice())

		assert.ErrorIs(t, err, repository.ErrDuplicateBooking)
	})

	t.Run("other database errors pass through", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("INSERT INTO invoices").
			WillReturnError(&pq.Error{Code: "53300"})

		err := repo.Create(context.Background(), testInvoice())

		require.Error(t, err)
		assert.NotErrorIs(t, err, repository.ErrDuplicateBooking)
	})
}

func TestGetByBookingID(t *testing.T) {
	t.Run("returns the invoice for a booking", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		inv := testInvoice()

		mock.ExpectQuery(regexp.QuoteMeta(`WHERE booking_id = $1`)).
			WithArgs(inv.BookingID).
			WillReturnRows(sqlmock.NewRows(invoiceColumns()).AddRow(invoiceRow(inv)...))

		got, err := repo.GetByBookingID(context.Background(), inv.BookingID)

		require.NoError(t, err)
		assert.Equal(t, inv.ID, got.ID)
		assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
		assert.Nil(t, got.PaidAt)
	})

	t.Run("missing booking maps to the not-found sentinel", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("FROM invoices").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByBookingID(context.Background(), uuid.New())

		assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	})
}

func TestGetByUserID(t *testing.T) {
	t.Run("returns every invoice for the user", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		userID := uuid.New()
		first := testInvoice()
		second := testInvoice()
		first.UserID = userID
		second.UserID = userID

		mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $1 ORDER BY created_at DESC`)).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(invoiceColumns()).
				AddRow(invoiceRow(second)...).
				AddRow(invoiceRow(first)...))

		got, err := repo.GetByUserID(context.Background(), userID)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, second.ID, got[0].ID)
		assert.Equal(t, first.ID, got[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user with no invoices yields an empty slice", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = $1`)).
			WillReturnRows(sqlmock.NewRows(invoiceColumns()))

		got, err := repo.GetByUserID(context.Background(), uuid.New())

		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("persists status and paid timestamp", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		inv := testInvoice()
		require.NoError(t, inv.MarkPaid())

		mock.ExpectExec("UPDATE invoices").
			WithArgs(string(inv.Status), inv.PaidAt, inv.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), inv))
	})

	t.Run("zero rows affected means not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("UPDATE invoices").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), testInvoice())

		assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	})
}
