// Package store provides CRUD repository operations for sync data.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/yhsiang/shopledger/internal/models"
)

// Repository provides record, settings and queue operations against
// the local store. Queue mutations are serialized with a mutex so a
// drain may run while in-flight pushes enqueue concurrently.
type Repository struct {
	db *sql.DB

	queueMu sync.Mutex
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// =====================================================
// Record Operations
// =====================================================

// GetRecord retrieves a record by entity and id. A missing record is
// not an error; it returns (nil, nil) so merge decisions can treat
// absence explicitly.
func (r *Repository) GetRecord(entity, id string) (models.Record, error) {
	var data string
	err := r.db.QueryRow(
		`SELECT data FROM records WHERE entity = ? AND id = ?`, entity, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", entity, id, err)
	}

	var rec models.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s/%s: %w", entity, id, err)
	}
	return rec, nil
}

// PutRecord inserts or replaces a record.
func (r *Repository) PutRecord(entity string, rec models.Record) error {
	if rec.ID() == "" {
		return fmt.Errorf("record for %s has no id", entity)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	ts := ""
	if t := rec.UpdatedAt(); !t.IsZero() {
		ts = t.UTC().Format(time.RFC3339)
	}

	_, err = r.db.Exec(`
		INSERT INTO records (entity, id, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(entity, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		entity, rec.ID(), string(data), ts)
	return err
}

// DeleteRecord removes a record. Deleting an absent record succeeds.
func (r *Repository) DeleteRecord(entity, id string) error {
	_, err := r.db.Exec(`DELETE FROM records WHERE entity = ? AND id = ?`, entity, id)
	return err
}

// ListRecords returns all records of an entity.
func (r *Repository) ListRecords(entity string) ([]models.Record, error) {
	rows, err := r.db.Query(`SELECT data FROM records WHERE entity = ? ORDER BY id`, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", entity, err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec models.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", entity, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =====================================================
// Settings Operations
// =====================================================

// GetSetting retrieves a single-key setting; "" when unset.
func (r *Repository) GetSetting(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// PutSetting replaces a setting wholesale.
func (r *Repository) PutSetting(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// =====================================================
// Sync Queue Operations
// =====================================================

// InsertQueueEntry appends an entry to the durable queue.
func (r *Repository) InsertQueueEntry(entry *models.QueueEntry) error {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO sync_queue (id, action, entity, payload, attempts, created_at, last_attempt)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.Entity, string(entry.Payload),
		entry.Attempts, entry.CreatedAt, entry.LastAttempt)
	return err
}

// ListQueueEntries returns all queued entries in insertion order.
func (r *Repository) ListQueueEntries() ([]models.QueueEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, action, entity, payload, attempts, created_at, last_attempt
		FROM sync_queue ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var out []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &payload,
			&e.Attempts, &e.CreatedAt, &e.LastAttempt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteQueueEntry removes an entry after a successful retry.
func (r *Repository) DeleteQueueEntry(id models.UUID) error {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	_, err := r.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

// BumpQueueAttempt records a failed retry in place. Only attempts and
// last_attempt ever change on an existing entry.
func (r *Repository) BumpQueueAttempt(id models.UUID, when int64) error {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	_, err := r.db.Exec(`
		UPDATE sync_queue SET attempts = attempts + 1, last_attempt = ? WHERE id = ?`,
		when, id)
	return err
}

// QueueLength returns the number of pending entries.
func (r *Repository) QueueLength() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	return n, err
}
