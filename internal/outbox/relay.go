package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher is the slice of the message bus client the relay needs.
type Publisher interface {
	Publish(ctx context.Context, body []byte, exchange, routingKey string) error
}

// Route maps an outbox message type to its broker destination.
type Route struct {
	Exchange   string
	RoutingKey string
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 20
	DefaultMaxRetry     = 3
)

// Relay polls the outbox and pushes unprocessed messages to the broker.
// It provides at-least-once delivery: a crash mid-pass leaves rows with
// processed_at NULL, so the next pass retries them. More than one relay
// instance may publish the same row; consumers are expected to be
// idempotent. Exclusivity and ordering are deliberately not its job.
type Relay struct {
	db           *sql.DB
	repo         Repository
	publisher    Publisher
	routes       map[string]Route
	pollInterval time.Duration
	batchSize    int
	maxRetry     int
	logger       *zap.Logger
}

func NewRelay(
	db *sql.DB,
	repo Repository,
	publisher Publisher,
	routes map[string]Route,
	pollInterval time.Duration,
	batchSize int,
	maxRetry int,
	logger *zap.Logger,
) *Relay {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetry
	}
	return &Relay{
		db:           db,
		repo:         repo,
		publisher:    publisher,
		routes:       routes,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxRetry:     maxRetry,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled, executing one relay pass per tick.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Outbox relay started",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize),
		zap.Int("max_retry", r.maxRetry),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping")
			return
		case <-ticker.C:
			if err := r.RunPass(ctx); err != nil {
				r.logger.Error("Outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

type passOutcome struct {
	processed []uuid.UUID
	failed    []failure
}

type failure struct {
	id    uuid.UUID
	cause string
}

// RunPass executes a single fetch-publish-record cycle. Publish failures
// are caught per row and never abort the batch; all outcomes are persisted
// in one transaction after every row has had its attempt.
func (r *Relay) RunPass(ctx context.Context) error {
	messages, err := r.repo.FetchUnprocessed(ctx, r.batchSize, r.maxRetry)
	if err != nil {
		return fmt.Errorf("failed to fetch unprocessed messages: %w", err)
	}

	r.reportPoison(ctx)

	if len(messages) == 0 {
		return nil
	}

	r.logger.Debug("Relaying outbox messages", zap.Int("count", len(messages)))

	var outcome passOutcome
	for _, msg := range messages {
		if err := r.publishOne(ctx, &msg); err != nil {
			r.logger.Warn("Failed to publish outbox message",
				zap.String("message_id", msg.ID.String()),
				zap.String("type", msg.Type),
				zap.Int("retry_count", msg.RetryCount),
				zap.Error(err),
			)
			outcome.failed = append(outcome.failed, failure{id: msg.ID, cause: err.Error()})
			continue
		}
		outcome.processed = append(outcome.processed, msg.ID)
	}

	if err := r.recordOutcome(ctx, outcome); err != nil {
		return fmt.Errorf("failed to record relay outcome: %w", err)
	}

	r.logger.Info("Outbox relay pass completed",
		zap.Int("published", len(outcome.processed)),
		zap.Int("failed", len(outcome.failed)),
	)
	return nil
}

func (r *Relay) publishOne(ctx context.Context, msg *Message) error {
	route, ok := r.routes[msg.Type]
	if !ok {
		// An unroutable type can never succeed; let it burn through the
		// retry budget and surface as poison instead of looping silently.
		return fmt.Errorf("no route registered for message type %q", msg.Type)
	}
	return r.publisher.Publish(ctx, msg.Content, route.Exchange, route.RoutingKey)
}

func (r *Relay) recordOutcome(ctx context.Context, outcome passOutcome) error {
	if len(outcome.processed) == 0 && len(outcome.failed) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin outcome transaction: %w", err)
	}

	if err := r.repo.MarkProcessedTx(ctx, tx, outcome.processed); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, f := range outcome.failed {
		if err := r.repo.MarkFailedTx(ctx, tx, f.id, f.cause); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcome transaction: %w", err)
	}
	return nil
}

// reportPoison keeps exhausted rows visible: they are excluded from the
// fetch predicate but an operator must hear about them every pass.
func (r *Relay) reportPoison(ctx context.Context) {
	count, err := r.repo.CountPoison(ctx, r.maxRetry)
	if err != nil {
		r.logger.Warn("Failed to count poison outbox messages", zap.Error(err))
		return
	}
	if count > 0 {
		r.logger.Error("Poison outbox messages awaiting operator intervention",
			zap.Int("count", count),
			zap.Int("max_retry", r.maxRetry),
		)
	}
}
