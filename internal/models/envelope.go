// Package models provides data model definitions for the ShopLedger sync core.
package models

import "time"

// Envelope is the remote-storage wrapper around an opaque record. The
// owner scopes visibility (enforced by the remote store's access
// policy) and updated_at drives last-write-wins merging. The envelope
// metadata is authoritative over any stale copy inside Data.
type Envelope struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Data      Record    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Unwrap returns the payload record with the envelope's id and
// timestamp overlaid.
func (e *Envelope) Unwrap() Record {
	rec := e.Data
	if rec == nil {
		rec = Record{}
	}
	rec = rec.Clone()
	rec.SetID(e.ID)
	rec.SetUpdatedAt(e.UpdatedAt)
	return rec
}

// WrapRecord builds an envelope for pushing a local record. The
// timestamp comes from the record itself when resolvable, else now,
// so that repeated pushes of the same record are idempotent.
func WrapRecord(rec Record, ownerID string, now time.Time) Envelope {
	ts := rec.UpdatedAt()
	if ts.IsZero() {
		ts = now.UTC()
	}
	return Envelope{
		ID:        rec.ID(),
		OwnerID:   ownerID,
		Data:      rec,
		UpdatedAt: ts,
	}
}
