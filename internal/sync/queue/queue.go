// Package queue provides the durable retry queue for failed sync
// actions. Entries are persisted in the local store so they survive
// process restarts, and drained in insertion order.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yhsiang/shopledger/internal/logging"
	"github.com/yhsiang/shopledger/internal/models"
	"github.com/yhsiang/shopledger/internal/uuid"
)

// Store is the persistence the queue needs from the local store. All
// mutating operations must be internally serialized.
type Store interface {
	InsertQueueEntry(entry *models.QueueEntry) error
	ListQueueEntries() ([]models.QueueEntry, error)
	DeleteQueueEntry(id models.UUID) error
	BumpQueueAttempt(id models.UUID, when int64) error
	QueueLength() (int, error)
}

// RetryFunc re-attempts one queued action against the remote store.
type RetryFunc func(ctx context.Context, entry models.QueueEntry) error

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Queue is the durable FIFO retry queue. Enqueue may be called
// concurrently with a running Drain; entries added mid-drain are
// picked up by the next pass.
type Queue struct {
	store Store
}

// New creates a Queue over a persistent store.
func New(store Store) *Queue {
	return &Queue{store: store}
}

// Enqueue appends a failed action. It never fails the caller's
// critical path: persistence errors are logged and swallowed, the
// returned id is empty in that case.
func (q *Queue) Enqueue(action, entity string, payload interface{}) models.UUID {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to encode queue payload", err,
			map[string]interface{}{"entity": entity, "action": action})
		return ""
	}

	entry := &models.QueueEntry{
		ID:        models.UUID(uuid.New()),
		Action:    action,
		Entity:    entity,
		Payload:   data,
		CreatedAt: time.Now().Unix(),
	}

	if err := q.store.InsertQueueEntry(entry); err != nil {
		logging.Error("Failed to persist queue entry", err,
			map[string]interface{}{"entity": entity, "action": action})
		return ""
	}

	logging.Debug("Queued sync action",
		map[string]interface{}{"entity": entity, "action": action, "entry_id": entry.ID})

	return entry.ID
}

// Drain re-attempts every currently queued entry in insertion order.
// Successes are removed; failures stay in place with their attempt
// count bumped, to be retried on the next drain. There is no
// dead-letter state: entries persist until they succeed.
func (q *Queue) Drain(ctx context.Context, retry RetryFunc) DrainResult {
	var result DrainResult

	entries, err := q.store.ListQueueEntries()
	if err != nil {
		logging.Error("Failed to load sync queue", err)
		return result
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		if err := retry(ctx, entry); err != nil {
			result.Failed++
			if bumpErr := q.store.BumpQueueAttempt(entry.ID, time.Now().Unix()); bumpErr != nil {
				logging.Error("Failed to record queue attempt", bumpErr,
					map[string]interface{}{"entry_id": entry.ID})
			}
			logging.Warn("Queued action still failing",
				map[string]interface{}{
					"entry_id": entry.ID,
					"entity":   entry.Entity,
					"action":   entry.Action,
					"attempts": entry.Attempts + 1,
					"error":    err.Error(),
				})
			continue
		}

		if err := q.store.DeleteQueueEntry(entry.ID); err != nil {
			logging.Error("Failed to remove completed queue entry", err,
				map[string]interface{}{"entry_id": entry.ID})
			result.Failed++
			continue
		}
		result.Processed++
	}

	if result.Processed > 0 || result.Failed > 0 {
		logging.Info("Sync queue drained",
			map[string]interface{}{"processed": result.Processed, "failed": result.Failed})
	}

	return result
}

// Len returns the number of pending entries; 0 on read failure.
func (q *Queue) Len() int {
	n, err := q.store.QueueLength()
	if err != nil {
		logging.Error("Failed to read queue length", err)
		return 0
	}
	return n
}
