package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/yhsiang/shopledger/internal/errors"
	"github.com/yhsiang/shopledger/internal/logging"
	"github.com/yhsiang/shopledger/internal/models"
	"github.com/yhsiang/shopledger/internal/registry"
	"github.com/yhsiang/shopledger/internal/remote"
	"github.com/yhsiang/shopledger/internal/sync/queue"
)

// watermarkKey is the settings key holding the last successful full
// sync start time, RFC3339.
const watermarkKey = "sync.watermark"

// LocalStore is the persistence the engine needs locally. The store
// repository satisfies it directly.
type LocalStore interface {
	GetRecord(entity, id string) (models.Record, error)
	PutRecord(entity string, rec models.Record) error
	DeleteRecord(entity, id string) error
	ListRecords(entity string) ([]models.Record, error)
	GetSetting(key string) (string, error)
	PutSetting(key, value string) error
	queue.Store
}

// RemoteStore is the subset of the remote client the engine uses.
type RemoteStore interface {
	Upsert(ctx context.Context, collection string, env models.Envelope) error
	Delete(ctx context.Context, collection, id, ownerID string) error
	Select(ctx context.Context, collection, ownerID string, since *time.Time) ([]models.Envelope, error)
}

// Remote supplies the engine's remote session: a store bound to the
// current credentials and the owner those credentials name.
type Remote interface {
	Store() (RemoteStore, error)
	OwnerID() string
}

// handleRemote adapts *remote.Handle to the Remote interface.
type handleRemote struct {
	h *remote.Handle
}

// NewHandleRemote wraps a remote handle for use by the engine.
func NewHandleRemote(h *remote.Handle) Remote {
	return handleRemote{h: h}
}

func (r handleRemote) Store() (RemoteStore, error) {
	c, err := r.h.Client()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r handleRemote) OwnerID() string {
	return r.h.OwnerID()
}

// ChangeFeed delivers remote change notifications. The websocket
// notifier satisfies it; a nil feed disables live updates.
type ChangeFeed interface {
	Subscribe(ctx context.Context, ownerID string, onChange func(remote.ChangeEvent)) (func(), error)
}

// Options tunes engine behavior. Zero values pick the defaults.
type Options struct {
	DebounceWindow time.Duration // delay before a local mutation triggers sync
}

// Report summarizes one full sync pass.
type Report struct {
	Pushed   int               `json:"pushed"`
	Queued   int               `json:"queued"`
	Skipped  int               `json:"skipped"` // remote already newer
	Pulled   int               `json:"pulled"`
	Drained  queue.DrainResult `json:"drained"`
	Duration time.Duration     `json:"duration"`
}

// Status is a point-in-time view of the engine for UIs and CLIs.
type Status struct {
	LastSyncTime       time.Time `json:"last_sync_time"`
	IsSyncing          bool      `json:"is_syncing"`
	PendingQueueLength int       `json:"pending_queue_length"`
}

// Engine coordinates push, pull, merge and retry across all registered
// entities. One engine per local store; FullSync is single-flight.
type Engine struct {
	local  LocalStore
	remote Remote
	queue  *queue.Queue
	feed   ChangeFeed

	debouncer *Debouncer

	mu      stdsync.Mutex
	syncing bool
}

// New creates an Engine over a local store and a remote session
// provider. The feed may be nil when live updates are not wanted.
func New(local LocalStore, rm Remote, feed ChangeFeed, opts Options) *Engine {
	e := &Engine{
		local:  local,
		remote: rm,
		queue:  queue.New(local),
		feed:   feed,
	}
	e.debouncer = NewDebouncer(opts.DebounceWindow, e.flushMutations)
	return e
}

// session resolves the remote store and the signed-in owner. Both
// failures are configuration errors and are never queued.
func (e *Engine) session() (RemoteStore, string, error) {
	store, err := e.remote.Store()
	if err != nil {
		return nil, "", err
	}
	ownerID := e.remote.OwnerID()
	if ownerID == "" {
		return nil, "", errors.New(errors.ErrNotAuthenticated, "no signed-in owner")
	}
	return store, ownerID, nil
}

// FullSync runs one complete pass: push every local record, pull and
// merge every entity modified since the watermark, then drain the
// retry queue. Entities are isolated; a failure in one never blocks
// the others.
//
// The watermark advances to the pass start time, and only when every
// pull succeeded, so changes landing remotely mid-pass are re-fetched
// next time instead of being lost. A cancelled pass leaves the
// watermark untouched.
func (e *Engine) FullSync(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil, errors.New(errors.ErrSyncInProgress, "a sync pass is already running")
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	store, ownerID, err := e.session()
	if err != nil {
		return nil, err
	}

	start := time.Now().UTC()
	since := e.watermark()
	report := &Report{}

	logging.Info("Starting full sync", map[string]interface{}{
		"owner_id":  ownerID,
		"watermark": formatWatermark(since),
	})

	pullsClean := true
	for _, ent := range registry.All() {
		if ctx.Err() != nil {
			return report, errors.Wrap(errors.ErrTimeout, "sync cancelled", ctx.Err())
		}
		e.pushAll(ctx, store, ownerID, ent, report)
	}

	for _, ent := range registry.All() {
		if ctx.Err() != nil {
			return report, errors.Wrap(errors.ErrTimeout, "sync cancelled", ctx.Err())
		}
		applied, err := e.pullEntity(ctx, store, ownerID, ent, since)
		report.Pulled += applied
		if err != nil {
			pullsClean = false
			logging.ErrorWithCode("Pull failed for entity", string(errors.Code(err)), err,
				map[string]interface{}{"entity": ent.Name})
		}
	}

	report.Drained = e.queue.Drain(ctx, e.retryEntry)
	if ctx.Err() != nil {
		return report, errors.Wrap(errors.ErrTimeout, "sync cancelled", ctx.Err())
	}

	if pullsClean {
		if err := e.local.PutSetting(watermarkKey, start.Format(time.RFC3339)); err != nil {
			logging.Error("Failed to persist sync watermark", err)
		}
	}

	report.Duration = time.Since(start)
	logging.Info("Full sync finished", map[string]interface{}{
		"pushed":   report.Pushed,
		"queued":   report.Queued,
		"pulled":   report.Pulled,
		"drained":  report.Drained.Processed,
		"pending":  e.queue.Len(),
		"duration": report.Duration.String(),
	})
	return report, nil
}

// pushAll pushes every local record of one entity. Transient failures
// are queued, stale pushes keep the newer remote copy for the pull
// phase, rejections are logged and skipped; none of them stops the
// entity or the pass.
func (e *Engine) pushAll(ctx context.Context, store RemoteStore, ownerID string, ent registry.Entity, report *Report) {
	records, err := e.local.ListRecords(ent.Name)
	if err != nil {
		logging.Error("Failed to list local records", err,
			map[string]interface{}{"entity": ent.Name})
		return
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}
		if rec.ID() == "" {
			logging.Warn("Skipping local record without id",
				map[string]interface{}{"entity": ent.Name})
			continue
		}

		err := store.Upsert(ctx, ent.Collection, models.WrapRecord(rec, ownerID, time.Now()))
		switch {
		case err == nil:
			report.Pushed++
		case errors.Retryable(err):
			e.queue.Enqueue(models.ActionUpsert, ent.Name, rec)
			report.Queued++
		case errors.Is(err, errors.ErrStale):
			report.Skipped++
			logging.Debug("Remote copy is newer, keeping it",
				map[string]interface{}{"entity": ent.Name, "id": rec.ID()})
		default:
			logging.ErrorWithCode("Remote store rejected record", string(errors.Code(err)), err,
				map[string]interface{}{"entity": ent.Name, "id": rec.ID()})
		}
	}
}

// flushMutations is the debounced incremental pass: propagate each
// buffered change through the push pipeline, deletes included, then
// drain whatever is queued. The flush never pulls; pulls belong to
// full passes and the change feed, so a just-deleted record cannot be
// resurrected here.
func (e *Engine) flushMutations(changes []Mutation) {
	ctx := context.Background()

	if _, _, err := e.session(); err != nil {
		logging.Debug("Skipping incremental sync", map[string]interface{}{
			"reason": err.Error(),
		})
		return
	}

	for _, m := range changes {
		var err error
		switch m.Action {
		case models.ActionDelete:
			_, err = e.PushDelete(ctx, m.Entity, m.Record.ID())
		default:
			_, err = e.Push(ctx, m.Entity, m.Record)
		}
		if err != nil {
			logging.ErrorWithCode("Failed to propagate local change", string(errors.Code(err)), err,
				map[string]interface{}{"entity": m.Entity, "action": m.Action, "id": m.Record.ID()})
		}
	}

	e.queue.Drain(ctx, e.retryEntry)
}

// OnLocalMutation buffers one local change for the debounced flush.
// Rapid bursts collapse into a single incremental pass once writes
// quiet down; the record carries the full state for upserts and at
// least the id for deletes.
func (e *Engine) OnLocalMutation(entityName, action string, rec models.Record) {
	if !registry.IsRegistered(entityName) {
		return
	}
	if rec.ID() == "" {
		logging.Warn("Ignoring local mutation without record id",
			map[string]interface{}{"entity": entityName, "action": action})
		return
	}
	e.debouncer.Notify(Mutation{Entity: entityName, Action: action, Record: rec})
}

// Watch subscribes to the remote change feed and merges incoming
// events until the context is cancelled. Returns the unsubscribe
// function.
func (e *Engine) Watch(ctx context.Context) (func(), error) {
	if e.feed == nil {
		return nil, errors.New(errors.ErrNotConfigured, "no change feed configured")
	}
	ownerID := e.remote.OwnerID()
	if ownerID == "" {
		return nil, errors.New(errors.ErrNotAuthenticated, "no signed-in owner")
	}
	return e.feed.Subscribe(ctx, ownerID, e.handleRemoteChange)
}

// handleRemoteChange merges one live event. Upserts go through the
// usual merge comparison so a stale event never clobbers newer local
// work; deletes are applied directly.
func (e *Engine) handleRemoteChange(ev remote.ChangeEvent) {
	if !registry.IsRegistered(ev.Entity) {
		logging.Warn("Ignoring change event for unknown entity",
			map[string]interface{}{"entity": ev.Entity})
		return
	}

	id := ev.Payload.ID()
	if id == "" {
		logging.Warn("Ignoring change event without record id",
			map[string]interface{}{"entity": ev.Entity, "action": ev.Action})
		return
	}

	switch ev.Action {
	case models.ActionDelete:
		if err := e.local.DeleteRecord(ev.Entity, id); err != nil {
			logging.Error("Failed to apply remote delete", err,
				map[string]interface{}{"entity": ev.Entity, "id": id})
		}

	case models.ActionUpsert:
		local, err := e.local.GetRecord(ev.Entity, id)
		if err != nil {
			logging.Error("Failed to load local record for change event", err,
				map[string]interface{}{"entity": ev.Entity, "id": id})
			return
		}
		if Merge(local, ev.Payload) != DecisionApplyRemote {
			return
		}
		if err := e.local.PutRecord(ev.Entity, ev.Payload); err != nil {
			logging.Error("Failed to apply change event", err,
				map[string]interface{}{"entity": ev.Entity, "id": id})
		}

	default:
		logging.Warn("Ignoring change event with unknown action",
			map[string]interface{}{"entity": ev.Entity, "action": ev.Action})
	}
}

// Drain retries everything currently queued against the remote store.
func (e *Engine) Drain(ctx context.Context) queue.DrainResult {
	return e.queue.Drain(ctx, e.retryEntry)
}

// Status reports the engine's current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	syncing := e.syncing
	e.mu.Unlock()

	var last time.Time
	if wm := e.watermark(); wm != nil {
		last = *wm
	}

	return Status{
		LastSyncTime:       last,
		IsSyncing:          syncing,
		PendingQueueLength: e.queue.Len(),
	}
}

// Close flushes and stops the debouncer.
func (e *Engine) Close() {
	e.debouncer.Stop()
}

// watermark loads the persisted pull watermark; nil means no full pass
// has ever completed and the next pull fetches everything.
func (e *Engine) watermark() *time.Time {
	raw, err := e.local.GetSetting(watermarkKey)
	if err != nil {
		logging.Error("Failed to read sync watermark", err)
		return nil
	}
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logging.Error("Discarding malformed sync watermark", err,
			map[string]interface{}{"value": raw})
		return nil
	}
	return &ts
}

func formatWatermark(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.UTC().Format(time.RFC3339)
}
