package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is a pending publication recorded in the same transaction as
// the state change it announces. The worker drains pending rows and pushes
// their payloads to the broker.
type OutboxEvent struct {
	ID          uuid.UUID       `db:"id"`
	EventType   string          `db:"event_type"`
	Payload     json.RawMessage `db:"payload"`
	Status      OutboxStatus    `db:"status"`
	RetryCount  int             `db:"retry_count"`
	LastError   *string         `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	ProcessedAt *time.Time      `db:"processed_at"`
}
