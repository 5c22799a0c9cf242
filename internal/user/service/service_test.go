package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookingsystem/internal/events"
	"bookingsystem/internal/outbox"
	"bookingsystem/internal/user/domain"
	"bookingsystem/internal/user/repository"
)

type fakeUserRepo struct {
	created   []*domain.User
	updated   []*domain.User
	byID      map[uuid.UUID]*domain.User
	createErr error
}

func (f *fakeUserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, u)
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) GetAll(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, u *domain.User) error {
	f.updated = append(f.updated, u)
	if f.byID != nil {
		f.byID[u.ID] = u
	}
	return nil
}

type fakeOutboxRepo struct {
	appended  []*outbox.Message
	appendErr error
}

func (f *fakeOutboxRepo) Append(ctx context.Context, tx *sql.Tx, msg *outbox.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeOutboxRepo) FetchUnprocessed(ctx context.Context, limit, maxRetry int) ([]outbox.Message, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkProcessedTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	return nil
}

func (f *fakeOutboxRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, cause string) error {
	return nil
}

func (f *fakeOutboxRepo) CountPoison(ctx context.Context, maxRetry int) (int, error) {
	return 0, nil
}

type userFixture struct {
	svc      UserService
	users    *fakeUserRepo
	outboxes *fakeOutboxRepo
	mock     sqlmock.Sqlmock
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := &fakeUserRepo{byID: map[uuid.UUID]*domain.User{}}
	outboxes := &fakeOutboxRepo{}
	svc := NewUserService(db, users, outboxes, zap.NewNop())
	return &userFixture{svc: svc, users: users, outboxes: outboxes, mock: mock}
}

func TestRegisterUser(t *testing.T) {
	t.Run("writes user and outbox message in one committed transaction", func(t *testing.T) {
		f := newUserFixture(t)

		f.mock.ExpectBegin()
		f.mock.ExpectCommit()

		resp, err := f.svc.RegisterUser(context.Background(), &RegisterUserRequest{
			Email:    "Jane.Doe@Example.com",
			FullName: "Jane Doe",
		})

		require.NoError(t, err)
		assert.Equal(t, "jane.doe@example.com", resp.Email)
		assert.True(t, resp.IsActive)

		require.Len(t, f.users.created, 1)
		require.Len(t, f.outboxes.appended, 1)

		msg := f.outboxes.appended[0]
		assert.Equal(t, events.TypeUserCreated, msg.Type)

		var event events.UserCreatedEvent
		require.NoError(t, json.Unmarshal(msg.Content, &event))
		assert.Equal(t, resp.UserID.String(), event.UserID)
		assert.Equal(t, "jane.doe@example.com", event.Email)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the outbox append fails", func(t *testing.T) {
		f := newUserFixture(t)
		f.outboxes.appendErr = errors.New("disk full")

		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		_, err := f.svc.RegisterUser(context.Background(), &RegisterUserRequest{
			Email:    "jane@example.com",
			FullName: "Jane Doe",
		})

		require.Error(t, err)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("taken email surfaces the repository sentinel", func(t *testing.T) {
		f := newUserFixture(t)
		f.users.createErr = repository.ErrEmailTaken

		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		_, err := f.svc.RegisterUser(context.Background(), &RegisterUserRequest{
			Email:    "jane@example.com",
			FullName: "Jane Doe",
		})

		assert.ErrorIs(t, err, repository.ErrEmailTaken)
	})

	t.Run("rejects invalid input before touching the database", func(t *testing.T) {
		f := newUserFixture(t)

		_, err := f.svc.RegisterUser(context.Background(), &RegisterUserRequest{Email: "bad", FullName: "Jane"})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)

		_, err = f.svc.RegisterUser(context.Background(), &RegisterUserRequest{Email: "jane@example.com", FullName: " "})
		assert.ErrorIs(t, err, domain.ErrEmptyFullName)

		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestDeactivateUser(t *testing.T) {
	t.Run("flips the active flag and persists", func(t *testing.T) {
		f := newUserFixture(t)
		u, err := domain.NewUser("jane@example.com", "Jane Doe")
		require.NoError(t, err)
		f.users.byID[u.ID] = u

		resp, err := f.svc.DeactivateUser(context.Background(), u.ID.String())

		require.NoError(t, err)
		assert.False(t, resp.IsActive)
		require.Len(t, f.users.updated, 1)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newUserFixture(t)

		_, err := f.svc.DeactivateUser(context.Background(), uuid.NewString())

		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newUserFixture(t)

		_, err := f.svc.DeactivateUser(context.Background(), "nope")

		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestGetUsers(t *testing.T) {
	f := newUserFixture(t)
	u, err := domain.NewUser("jane@example.com", "Jane Doe")
	require.NoError(t, err)
	f.users.byID[u.ID] = u

	t.Run("by id", func(t *testing.T) {
		resp, err := f.svc.GetUser(context.Background(), u.ID.String())
		require.NoError(t, err)
		assert.Equal(t, u.ID, resp.UserID)
	})

	t.Run("by email", func(t *testing.T) {
		resp, err := f.svc.GetUserByEmail(context.Background(), "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, resp.UserID)
	})

	t.Run("by email normalizes case and whitespace", func(t *testing.T) {
		resp, err := f.svc.GetUserByEmail(context.Background(), "  Jane@Example.COM ")
		require.NoError(t, err)
		assert.Equal(t, u.ID, resp.UserID)
	})

	t.Run("by email with no match", func(t *testing.T) {
		_, err := f.svc.GetUserByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("by blank email", func(t *testing.T) {
		_, err := f.svc.GetUserByEmail(context.Background(), "   ")
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	})

	t.Run("all", func(t *testing.T) {
		resps, err := f.svc.GetAllUsers(context.Background())
		require.NoError(t, err)
		assert.Len(t, resps, 1)
	})
}
