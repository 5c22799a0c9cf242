package outbox

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Repository is the durable append log backing the outbox pattern.
//
// Append takes a caller-supplied transaction and never opens its own: the
// whole point of the outbox is that the message and the business write
// share one atomic commit.
type Repository interface {
	Append(ctx context.Context, tx *sql.Tx, msg *Message) error
	FetchUnprocessed(ctx context.Context, limit, maxRetry int) ([]Message, error)
	MarkProcessedTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error
	MarkFailedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, cause string) error
	CountPoison(ctx context.Context, maxRetry int) (int, error)
}
