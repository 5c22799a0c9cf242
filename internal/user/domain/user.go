package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrEmptyFullName = errors.New("full name must not be empty")
)

type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	IsActive  bool
	CreatedAt time.Time
}

func NewUser(email, fullName string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if strings.TrimSpace(fullName) == "" {
		return nil, ErrEmptyFullName
	}
	return &User{
		ID:        uuid.New(),
		Email:     email,
		FullName:  fullName,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (u *User) Deactivate() {
	u.IsActive = false
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	domainPart := email[at+1:]
	if !strings.Contains(domainPart, ".") || strings.Contains(email, " ") {
		return ErrInvalidEmail
	}
	return nil
}
