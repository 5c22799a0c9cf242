package http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookingsystem/internal/user/service"
)

func RegisterRoutes(r chi.Router, s service.UserService, l *zap.Logger) {
	handler := NewUserHandler(s, l.With(zap.String("component", "UserHTTPHandler")))

	r.Route("/users", func(r chi.Router) {
		r.Post("/", handler.RegisterUser)
		r.Get("/", handler.GetAllUsers)
		r.Get("/by-email/{email}", handler.GetUserByEmail)
		r.Get("/{userID}", handler.GetUser)
		r.Post("/{userID}/deactivate", handler.DeactivateUser)
	})
}
