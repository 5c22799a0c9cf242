package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is one row of the transactional outbox. It is inserted in the
// same database transaction as the business fact it describes and mutated
// only by the relay afterwards. A message with ProcessedAt set is never
// published again.
type Message struct {
	ID          uuid.UUID
	Type        string
	Content     json.RawMessage
	OccurredAt  time.Time
	ProcessedAt *time.Time
	RetryCount  int
	Error       *string
}

// NewMessage builds a pending outbox message for an already-serialized
// integration event.
func NewMessage(eventType string, content []byte) *Message {
	return &Message{
		ID:         uuid.New(),
		Type:       eventType,
		Content:    content,
		OccurredAt: time.Now().UTC(),
	}
}
