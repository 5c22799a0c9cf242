package app

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bookingsystem/internal/config"
	"bookingsystem/internal/database"
)

// NewLogger builds the production logger shared by all service binaries.
func NewLogger() *zap.Logger {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// ConnectWithRetry dials PostgreSQL, waiting for the database to come up.
// Services start before their database in compose environments.
func ConnectWithRetry(cfg *config.Config, logger *zap.Logger) *sql.DB {
	const maxRetries = 10
	const retryDelay = 5 * time.Second

	var db *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(cfg.GetDBConnectionString())
		if err == nil {
			logger.Info("Connected to PostgreSQL")
			return db
		}
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	logger.Fatal("Could not connect to database after retries", zap.Error(err))
	return nil
}
