package sync

import (
	"context"
	"time"

	"github.com/yhsiang/shopledger/internal/logging"
	"github.com/yhsiang/shopledger/internal/registry"
)

// pullEntity fetches remote envelopes for one entity and merges them
// into the local store record by record. Envelopes without an id are
// logged and skipped; a malformed row must not block its neighbors.
// Returns the number of records applied locally.
func (e *Engine) pullEntity(ctx context.Context, store RemoteStore, ownerID string, ent registry.Entity, since *time.Time) (int, error) {
	envelopes, err := store.Select(ctx, ent.Collection, ownerID, since)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, env := range envelopes {
		if env.ID == "" {
			logging.Warn("Skipping envelope without id",
				map[string]interface{}{"entity": ent.Name})
			continue
		}

		incoming := env.Unwrap()
		local, err := e.local.GetRecord(ent.Name, env.ID)
		if err != nil {
			logging.Error("Failed to load local record for merge", err,
				map[string]interface{}{"entity": ent.Name, "id": env.ID})
			continue
		}

		if Merge(local, incoming) != DecisionApplyRemote {
			continue
		}
		if err := e.local.PutRecord(ent.Name, incoming); err != nil {
			logging.Error("Failed to apply remote record", err,
				map[string]interface{}{"entity": ent.Name, "id": env.ID})
			continue
		}
		applied++
	}

	if applied > 0 {
		logging.Debug("Merged remote changes", map[string]interface{}{
			"entity":   ent.Name,
			"fetched":  len(envelopes),
			"applied":  applied,
			"owner_id": ownerID,
		})
	}
	return applied, nil
}

// PullEntity fetches and merges a single entity outside a full pass,
// without a watermark restriction. Used after targeted change
// notifications.
func (e *Engine) PullEntity(ctx context.Context, entityName string) (int, error) {
	ent, err := registry.Lookup(entityName)
	if err != nil {
		return 0, err
	}
	store, ownerID, err := e.session()
	if err != nil {
		return 0, err
	}
	return e.pullEntity(ctx, store, ownerID, ent, nil)
}
