package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bookingsystem/internal/outbox"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, tx *sql.Tx, msg *outbox.Message) error {
	query := `
		INSERT INTO outbox_messages (id, type, content, occurred_at, retry_count)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query,
		msg.ID,
		msg.Type,
		[]byte(msg.Content),
		msg.OccurredAt,
		msg.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("failed to append outbox message: %w", err)
	}
	return nil
}

func (r *Repository) FetchUnprocessed(ctx context.Context, limit, maxRetry int) ([]outbox.Message, error) {
	query := `
		SELECT id, type, content, occurred_at, processed_at, retry_count, error
		FROM outbox_messages
		WHERE processed_at IS NULL AND retry_count < $1
		ORDER BY occurred_at ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, maxRetry, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unprocessed outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []outbox.Message
	for rows.Next() {
		var msg outbox.Message
		var content []byte
		var processedAt sql.NullTime
		var lastError sql.NullString
		err := rows.Scan(
			&msg.ID,
			&msg.Type,
			&content,
			&msg.OccurredAt,
			&processedAt,
			&msg.RetryCount,
			&lastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		msg.Content = content
		if processedAt.Valid {
			msg.ProcessedAt = &processedAt.Time
		}
		if lastError.Valid {
			msg.Error = &lastError.String
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}

	return messages, nil
}

func (r *Repository) MarkProcessedTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	query := `
		UPDATE outbox_messages
		SET processed_at = $1, error = NULL
		WHERE id = ANY($2)
	`
	res, err := tx.ExecContext(ctx, query, time.Now().UTC(), pq.Array(raw))
	if err != nil {
		return fmt.Errorf("failed to mark outbox messages as processed: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox processed: %w", err)
	}
	if rowsAffected != int64(len(ids)) {
		return fmt.Errorf("not all outbox messages were marked as processed; expected %d, got %d", len(ids), rowsAffected)
	}
	return nil
}

func (r *Repository) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, cause string) error {
	// retry_count is incremented in SQL rather than from the in-memory row
	// so a crashed relay pass never loses an increment.
	query := `
		UPDATE outbox_messages
		SET retry_count = retry_count + 1, error = $1
		WHERE id = $2
	`
	res, err := tx.ExecContext(ctx, query, cause, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s as failed: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox failed: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("outbox message %s not found for failure update", id)
	}
	return nil
}

func (r *Repository) CountPoison(ctx context.Context, maxRetry int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM outbox_messages
		WHERE processed_at IS NULL AND retry_count >= $1
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, maxRetry).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count poison outbox messages: %w", err)
	}
	return count, nil
}
