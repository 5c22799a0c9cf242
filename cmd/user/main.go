package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"bookingsystem/internal/app"
	"bookingsystem/internal/config"
	"bookingsystem/internal/database"
	"bookingsystem/internal/events"
	"bookingsystem/internal/outbox"
	outbox_postgres "bookingsystem/internal/outbox/postgres"
	"bookingsystem/internal/rabbitmq"
	user_http "bookingsystem/internal/user/handler/http"
	user_postgres "bookingsystem/internal/user/repository/postgres"
	"bookingsystem/internal/user/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger()
	defer logger.Sync()
	logger.Info("User service starting")

	db := app.ConnectWithRetry(cfg, logger)
	defer db.Close()

	if err := database.RunMigrations(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString()); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed")

	userRepo := user_postgres.NewUserRepository(db)
	outboxRepo := outbox_postgres.NewRepository(db)

	userService := service.NewUserService(
		db,
		userRepo,
		outboxRepo,
		logger.With(zap.String("component", "UserService")),
	)

	publisher := rabbitmq.NewPublisher(cfg.RabbitMQURL, logger.With(zap.String("component", "Publisher")))
	defer publisher.Close()

	relay := outbox.NewRelay(
		db,
		outboxRepo,
		publisher,
		map[string]outbox.Route{
			events.TypeUserCreated: {Exchange: events.UserEventsExchange, RoutingKey: events.UserCreatedKey},
		},
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxMaxRetry,
		logger.With(zap.String("component", "OutboxRelay")),
	)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	user_http.RegisterRoutes(router, userService, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go relay.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down user service")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("User service stopped")
}
