// Package models provides data model definitions for the ShopLedger sync core.
package models

import "encoding/json"

// Queue actions.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// QueueEntry represents a pending sync action that failed once and is
// waiting to be retried. Entries are immutable except for Attempts and
// LastAttempt; they are destroyed only by a successful retry.
type QueueEntry struct {
	ID          UUID            `db:"id" json:"id"`
	Action      string          `db:"action" json:"action"` // upsert, delete
	Entity      string          `db:"entity" json:"entity"`
	Payload     json.RawMessage `db:"payload" json:"payload"` // record for upsert, bare id for delete
	Attempts    int             `db:"attempts" json:"attempts"`
	CreatedAt   int64           `db:"created_at" json:"created_at"`
	LastAttempt int64           `db:"last_attempt" json:"last_attempt"`
}

// TableName returns the table name for QueueEntry.
func (QueueEntry) TableName() string {
	return "sync_queue"
}

// Record decodes the payload of an upsert entry.
func (e *QueueEntry) Record() (Record, error) {
	var rec Record
	if err := json.Unmarshal(e.Payload, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordID decodes the payload of a delete entry.
func (e *QueueEntry) RecordID() (string, error) {
	var id string
	if err := json.Unmarshal(e.Payload, &id); err != nil {
		return "", err
	}
	return id, nil
}
