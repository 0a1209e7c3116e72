// Package models provides data model definitions for the ShopLedger sync core.
package models

import (
	"database/sql/driver"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Record is an opaque entity-shaped value. The sync engine only relies
// on two fields: "id" (primary key) and "updatedAt" (RFC3339 timestamp
// assigned by the writer at mutation time); everything else passes
// through untouched.
type Record map[string]interface{}

// ID returns the record's primary key, or "" when absent.
func (r Record) ID() string {
	if v, ok := r["id"].(string); ok {
		return v
	}
	return ""
}

// UpdatedAt returns the record's modification timestamp. A missing or
// malformed timestamp yields the zero time, so such records always
// lose merge comparisons instead of crashing the comparator.
func (r Record) UpdatedAt() time.Time {
	v, ok := r["updatedAt"].(string)
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// SetID sets the record's primary key.
func (r Record) SetID(id string) {
	r["id"] = id
}

// SetUpdatedAt sets the record's modification timestamp.
func (r Record) SetUpdatedAt(ts time.Time) {
	r["updatedAt"] = ts.UTC().Format(time.RFC3339)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
