package sync

import (
	"context"
	"time"

	"github.com/yhsiang/shopledger/internal/errors"
	"github.com/yhsiang/shopledger/internal/logging"
	"github.com/yhsiang/shopledger/internal/models"
	"github.com/yhsiang/shopledger/internal/registry"
)

// Outcome reports how a push left the record.
type Outcome string

const (
	// OutcomeAcked means the remote store accepted the write.
	OutcomeAcked Outcome = "acked"
	// OutcomeQueued means a transient failure parked the action in the
	// retry queue; it will converge on a later drain.
	OutcomeQueued Outcome = "queued"
	// OutcomeStale means the remote store already holds a newer copy;
	// the local side catches up on the next pull.
	OutcomeStale Outcome = "stale"
)

// Push replicates a locally written record to the remote store. The
// record must already be persisted locally; Push never touches the
// local store.
//
// Precondition failures (no credentials, signed out, unregistered
// entity, missing id) are returned to the caller and never queued.
// Transient failures are queued and reported as OutcomeQueued without
// an error; only non-retryable remote rejections surface as errors.
func (e *Engine) Push(ctx context.Context, entityName string, rec models.Record) (Outcome, error) {
	ent, err := registry.Lookup(entityName)
	if err != nil {
		return "", errors.Wrap(errors.ErrValidation, "cannot push unregistered entity", err)
	}
	if rec.ID() == "" {
		return "", errors.New(errors.ErrValidation, "record has no id")
	}

	store, ownerID, err := e.session()
	if err != nil {
		return "", err
	}

	env := models.WrapRecord(rec, ownerID, time.Now())
	if err := store.Upsert(ctx, ent.Collection, env); err != nil {
		if errors.Retryable(err) {
			e.queue.Enqueue(models.ActionUpsert, entityName, rec)
			logging.Warn("Push deferred to retry queue", map[string]interface{}{
				"entity": entityName,
				"id":     rec.ID(),
				"error":  err.Error(),
			})
			return OutcomeQueued, nil
		}
		if errors.Is(err, errors.ErrStale) {
			logging.Debug("Remote copy is newer, keeping it", map[string]interface{}{
				"entity": entityName,
				"id":     rec.ID(),
			})
			return OutcomeStale, nil
		}
		logging.ErrorWithCode("Remote store rejected push", string(errors.Code(err)), err,
			map[string]interface{}{"entity": entityName, "id": rec.ID()})
		return "", err
	}

	logging.Debug("Pushed record", map[string]interface{}{
		"entity": entityName,
		"id":     rec.ID(),
	})
	return OutcomeAcked, nil
}

// PushDelete propagates a local deletion to the remote store. Same
// error contract as Push; a record already absent remotely counts as
// acknowledged.
func (e *Engine) PushDelete(ctx context.Context, entityName, id string) (Outcome, error) {
	ent, err := registry.Lookup(entityName)
	if err != nil {
		return "", errors.Wrap(errors.ErrValidation, "cannot push unregistered entity", err)
	}
	if id == "" {
		return "", errors.New(errors.ErrValidation, "delete has no id")
	}

	store, ownerID, err := e.session()
	if err != nil {
		return "", err
	}

	if err := store.Delete(ctx, ent.Collection, id, ownerID); err != nil {
		if errors.Retryable(err) {
			e.queue.Enqueue(models.ActionDelete, entityName, id)
			logging.Warn("Delete deferred to retry queue", map[string]interface{}{
				"entity": entityName,
				"id":     id,
				"error":  err.Error(),
			})
			return OutcomeQueued, nil
		}
		logging.ErrorWithCode("Remote store rejected delete", string(errors.Code(err)), err,
			map[string]interface{}{"entity": entityName, "id": id})
		return "", err
	}

	logging.Debug("Pushed delete", map[string]interface{}{
		"entity": entityName,
		"id":     id,
	})
	return OutcomeAcked, nil
}

// retryEntry replays one queued action against the remote store during
// a drain. Non-retryable rejections count as handled so the entry is
// removed instead of poisoning the queue forever.
func (e *Engine) retryEntry(ctx context.Context, entry models.QueueEntry) error {
	ent, err := registry.Lookup(entry.Entity)
	if err != nil {
		logging.Error("Dropping queue entry for unknown entity", err,
			map[string]interface{}{"entry_id": entry.ID, "entity": entry.Entity})
		return nil
	}

	store, ownerID, err := e.session()
	if err != nil {
		return err
	}

	switch entry.Action {
	case models.ActionUpsert:
		rec, err := entry.Record()
		if err != nil {
			logging.Error("Dropping undecodable queue entry", err,
				map[string]interface{}{"entry_id": entry.ID, "entity": entry.Entity})
			return nil
		}
		err = store.Upsert(ctx, ent.Collection, models.WrapRecord(rec, ownerID, time.Now()))
		if errors.Is(err, errors.ErrStale) {
			logging.Debug("Dropping queue entry, remote copy is newer",
				map[string]interface{}{"entry_id": entry.ID, "entity": entry.Entity})
			return nil
		}
		if err != nil && !errors.Retryable(err) {
			logging.ErrorWithCode("Dropping rejected queue entry", string(errors.Code(err)), err,
				map[string]interface{}{"entry_id": entry.ID, "entity": entry.Entity})
			return nil
		}
		return err

	case models.ActionDelete:
		id, err := entry.RecordID()
		if err != nil {
			logging.Error("Dropping undecodable queue entry", err,
				map[string]interface{}{"entry_id": entry.ID, "entity": entry.Entity})
			return nil
		}
		err = store.Delete(ctx, ent.Collection, id, ownerID)
		if err != nil && !errors.Retryable(err) {
			logging.ErrorWithCode("Dropping rejected queue entry", string(errors.Code(err)), err,
				map[string]interface{}{"entry_id": entry.ID, "entity": entry.Entity})
			return nil
		}
		return err

	default:
		logging.Error("Dropping queue entry with unknown action", nil,
			map[string]interface{}{"entry_id": entry.ID, "action": entry.Action})
		return nil
	}
}
