package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bookingsystem/internal/events"
	"bookingsystem/internal/outbox"
	"bookingsystem/internal/user/domain"
	"bookingsystem/internal/user/repository"
)

var ErrInvalidID = errors.New("invalid id")

type RegisterUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type UserResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type UserService interface {
	RegisterUser(ctx context.Context, req *RegisterUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	GetUserByEmail(ctx context.Context, email string) (*UserResponse, error)
	GetAllUsers(ctx context.Context) ([]*UserResponse, error)
	DeactivateUser(ctx context.Context, id string) (*UserResponse, error)
}

type userService struct {
	db         *sql.DB
	users      repository.UserRepository
	outboxRepo outbox.Repository
	logger     *zap.Logger
}

func NewUserService(db *sql.DB, users repository.UserRepository, outboxRepo outbox.Repository, logger *zap.Logger) UserService {
	return &userService{
		db:         db,
		users:      users,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// RegisterUser writes the user row and its UserCreatedEvent outbox row in
// one transaction.
func (s *userService) RegisterUser(ctx context.Context, req *RegisterUserRequest) (*UserResponse, error) {
	user, err := domain.NewUser(req.Email, req.FullName)
	if err != nil {
		return nil, err
	}

	event := events.UserCreatedEvent{
		UserID:    user.ID.String(),
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user created event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := s.users.CreateTx(ctx, tx, user); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := s.outboxRepo.Append(ctx, tx, outbox.NewMessage(events.TypeUserCreated, payload)); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user transaction: %w", err)
	}

	s.logger.Info("User registered and event queued in outbox",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
	)
	return mapUserToResponse(user), nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapUserToResponse(user), nil
}

// GetUserByEmail normalizes the lookup the same way registration does, so
// a mixed-case query still finds the stored lowercase row.
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*UserResponse, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, domain.ErrInvalidEmail
	}
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	return mapUserToResponse(user), nil
}

func (s *userService) GetAllUsers(ctx context.Context) ([]*UserResponse, error) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]*UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, mapUserToResponse(&users[i]))
	}
	return responses, nil
}

func (s *userService) DeactivateUser(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Deactivate()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User deactivated", zap.String("user_id", user.ID.String()))
	return mapUserToResponse(user), nil
}

func mapUserToResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		UserID:    u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
