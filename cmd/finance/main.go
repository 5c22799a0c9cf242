package main

import (
	"context"
	"errors"
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
	finance_amqp "bookingsystem/internal/finance/handler/amqp"
	finance_http "bookingsystem/internal/finance/handler/http"
	finance_postgres "bookingsystem/internal/finance/repository/postgres"
	"bookingsystem/internal/finance/service"
	"bookingsystem/internal/rabbitmq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger()
	defer logger.Sync()
	logger.Info("Finance service starting")

	db := app.ConnectWithRetry(cfg, logger)
	defer db.Close()

	if err := database.RunMigrations(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString()); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed")

	invoiceRepo := finance_postgres.NewInvoiceRepository(db)
	invoiceService := service.NewInvoiceService(
		invoiceRepo,
		logger.With(zap.String("component", "InvoiceService")),
	)

	consumer := rabbitmq.NewConsumer(
		cfg.RabbitMQURL,
		events.BookingEventsExchange,
		events.FinanceBookingCreatedQueue,
		events.BookingCreatedKey,
		logger.With(zap.String("component", "BookingCreatedConsumer")),
	)
	bookingCreatedHandler := finance_amqp.BookingCreatedHandler(
		invoiceService,
		logger.With(zap.String("component", "BookingCreatedHandler")),
	)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	finance_http.RegisterRoutes(router, invoiceService, logger)

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

	go func() {
		if err := consumer.Start(ctx, bookingCreatedHandler); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// Losing the broker connection is the one condition allowed to
			// take the service down; the orchestrator restarts it.
			logger.Fatal("Booking created consumer failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down finance service")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("Finance service stopped")
}
