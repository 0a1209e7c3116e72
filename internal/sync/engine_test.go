// Package sync provides unit tests for the sync engine.
package sync

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/yhsiang/shopledger/internal/errors"
	"github.com/yhsiang/shopledger/internal/models"
	"github.com/yhsiang/shopledger/internal/remote"
	"github.com/yhsiang/shopledger/internal/store"
)

// fakeRemote is an in-memory stand-in for the remote record store. It
// implements both Remote and RemoteStore so tests can inject failures
// per collection.
type fakeRemote struct {
	mu          stdsync.Mutex
	owner       string
	collections map[string]map[string]models.Envelope
	failWith    map[string]error // collection -> injected error
	storeErr    error
	upserts     int
}

func newFakeRemote(owner string) *fakeRemote {
	return &fakeRemote{
		owner:       owner,
		collections: make(map[string]map[string]models.Envelope),
		failWith:    make(map[string]error),
	}
}

func (f *fakeRemote) Store() (RemoteStore, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	return f, nil
}

func (f *fakeRemote) OwnerID() string { return f.owner }

func (f *fakeRemote) fail(collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failWith, collection)
	} else {
		f.failWith[collection] = err
	}
}

func (f *fakeRemote) put(collection string, env models.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]models.Envelope)
	}
	f.collections[collection][env.ID] = env
}

func (f *fakeRemote) get(collection, id string) (models.Envelope, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.collections[collection][id]
	return env, ok
}

// Upsert mirrors the remote contract: a stored copy with a strictly
// newer timestamp wins and the push is reported stale.
func (f *fakeRemote) Upsert(ctx context.Context, collection string, env models.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failWith[collection]; err != nil {
		return err
	}
	if existing, ok := f.collections[collection][env.ID]; ok && existing.UpdatedAt.After(env.UpdatedAt) {
		return errors.New(errors.ErrStale, "stored copy is newer")
	}

	f.upserts++
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]models.Envelope)
	}
	f.collections[collection][env.ID] = env
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failWith[collection]; err != nil {
		return err
	}
	delete(f.collections[collection], id)
	return nil
}

func (f *fakeRemote) Select(ctx context.Context, collection, ownerID string, since *time.Time) ([]models.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failWith[collection]; err != nil {
		return nil, err
	}

	var out []models.Envelope
	for _, env := range f.collections[collection] {
		if env.OwnerID != ownerID {
			continue
		}
		if since != nil && !env.UpdatedAt.After(*since) {
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

func newTestEngine(t *testing.T, rm Remote) *Engine {
	t.Helper()

	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := New(store.NewRepository(db.DB), rm, nil, Options{DebounceWindow: 20 * time.Millisecond})
	t.Cleanup(e.Close)
	return e
}

func stamped(id, updatedAt string, extra map[string]interface{}) models.Record {
	rec := models.Record{"id": id, "updatedAt": updatedAt}
	for k, v := range extra {
		rec[k] = v
	}
	return rec
}

func netErr() error {
	return errors.New(errors.ErrNetwork, "connection refused")
}

// TestFullSyncPushAndPull tests one complete pass: local records land
// remotely, remote records land locally, the watermark advances.
func TestFullSyncPushAndPull(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	order := stamped("o1", "2024-01-01T10:00:00Z", map[string]interface{}{"total": 42.0})
	if err := e.local.PutRecord("orders", order); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	expense := stamped("e1", "2024-01-01T09:00:00Z", map[string]interface{}{"amount": 7.5})
	rm.put("expenses", models.WrapRecord(expense, "owner-1", time.Now()))

	report, err := e.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if report.Pushed != 1 {
		t.Errorf("Expected 1 push, got %d", report.Pushed)
	}
	if report.Pulled != 1 {
		t.Errorf("Expected 1 pull, got %d", report.Pulled)
	}

	if _, ok := rm.get("orders", "o1"); !ok {
		t.Error("Expected the order to reach the remote store")
	}
	got, err := e.local.GetRecord("expenses", "e1")
	if err != nil || got == nil {
		t.Fatalf("Expected the expense locally, got %v (%v)", got, err)
	}

	if e.Status().LastSyncTime.IsZero() {
		t.Error("Expected the watermark to advance")
	}
}

// TestFullSyncIdempotent tests that repeating a pass with no changes
// converges: the second pull is empty and state is unchanged.
func TestFullSyncIdempotent(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	rm.put("products", models.WrapRecord(
		stamped("p1", "2024-01-01T08:00:00Z", nil), "owner-1", time.Now()))

	if _, err := e.FullSync(context.Background()); err != nil {
		t.Fatalf("First FullSync failed: %v", err)
	}

	report, err := e.FullSync(context.Background())
	if err != nil {
		t.Fatalf("Second FullSync failed: %v", err)
	}
	if report.Pulled != 0 {
		t.Errorf("Expected an empty second pull, got %d", report.Pulled)
	}

	got, err := e.local.GetRecord("products", "p1")
	if err != nil || got == nil {
		t.Fatalf("Expected the product to stay, got %v (%v)", got, err)
	}
}

// TestMergeDuringPull tests last-write-wins during a pull: a newer
// remote copy replaces the local record, an older one does not.
func TestMergeDuringPull(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	local := stamped("1001", "2024-01-01T10:00:00Z", map[string]interface{}{"status": "draft"})
	if err := e.local.PutRecord("orders", local); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	newer := stamped("1001", "2024-01-01T10:05:00Z", map[string]interface{}{"status": "shipped"})
	rm.put("orders", models.WrapRecord(newer, "owner-1", time.Now()))

	if _, err := e.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}

	got, _ := e.local.GetRecord("orders", "1001")
	if got["status"] != "shipped" {
		t.Errorf("Expected the newer remote copy to win, got %v", got)
	}

	// Now local edit at 10:10, remote still at 10:05.
	edited := stamped("1001", "2024-01-01T10:10:00Z", map[string]interface{}{"status": "refunded"})
	if err := e.local.PutRecord("orders", edited); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	if _, err := e.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}

	got, _ = e.local.GetRecord("orders", "1001")
	if got["status"] != "refunded" {
		t.Errorf("Expected the newer local edit to survive, got %v", got)
	}
	env, _ := rm.get("orders", "1001")
	if env.Data["status"] != "refunded" {
		t.Errorf("Expected the local edit pushed out, got %v", env.Data)
	}
}

// TestEnvelopeMetadataWins tests that stale id and timestamp copies
// inside the envelope payload lose to the envelope metadata.
func TestEnvelopeMetadataWins(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	rm.put("orders", models.Envelope{
		ID:        "o1",
		OwnerID:   "owner-1",
		UpdatedAt: mustTime(t, "2024-01-01T12:00:00Z"),
		Data:      stamped("stale-id", "2023-06-01T00:00:00Z", nil),
	})

	if _, err := e.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}

	got, _ := e.local.GetRecord("orders", "o1")
	if got == nil {
		t.Fatal("Expected the record under the envelope id")
	}
	if got.ID() != "o1" {
		t.Errorf("Expected envelope id to win, got %q", got.ID())
	}
	if !got.UpdatedAt().Equal(mustTime(t, "2024-01-01T12:00:00Z")) {
		t.Errorf("Expected envelope timestamp to win, got %v", got.UpdatedAt())
	}
}

// TestPartialFailureIsolation tests that one failing entity neither
// blocks the others nor advances the watermark.
func TestPartialFailureIsolation(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	rm.put("expenses", models.WrapRecord(
		stamped("e1", "2024-01-01T09:00:00Z", nil), "owner-1", time.Now()))
	rm.fail("orders", netErr())

	report, err := e.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if report.Pulled != 1 {
		t.Errorf("Expected the healthy entity to merge, got %d", report.Pulled)
	}

	got, _ := e.local.GetRecord("expenses", "e1")
	if got == nil {
		t.Error("Expected the expense merged despite the orders failure")
	}
	if !e.Status().LastSyncTime.IsZero() {
		t.Error("Expected the watermark to stay put after a failed pull")
	}

	// Failure clears: the next pass fetches everything and advances.
	rm.fail("orders", nil)
	if _, err := e.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if e.Status().LastSyncTime.IsZero() {
		t.Error("Expected the watermark to advance once pulls are clean")
	}
}

// TestTransientPushQueuedAndDrained tests the offline round trip: a
// failed push parks in the queue and a later pass delivers it.
func TestTransientPushQueuedAndDrained(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	expense := stamped("e1", "2024-01-01T09:00:00Z", map[string]interface{}{"amount": 3.0})
	if err := e.local.PutRecord("expenses", expense); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	rm.fail("expenses", netErr())
	report, err := e.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if report.Queued != 1 {
		t.Errorf("Expected 1 queued push, got %d", report.Queued)
	}
	if e.Status().PendingQueueLength != 1 {
		t.Errorf("Expected 1 pending entry, got %d", e.Status().PendingQueueLength)
	}

	rm.fail("expenses", nil)
	report, err = e.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if e.Status().PendingQueueLength != 0 {
		t.Errorf("Expected the queue drained, got %d pending", e.Status().PendingQueueLength)
	}
	if _, ok := rm.get("expenses", "e1"); !ok {
		t.Error("Expected the queued expense delivered")
	}
}

// TestPushPreconditionsNotQueued tests that configuration failures are
// surfaced to the caller and never parked in the queue.
func TestPushPreconditionsNotQueued(t *testing.T) {
	rm := newFakeRemote("")
	rm.storeErr = errors.New(errors.ErrNotConfigured, "remote store credentials missing")
	e := newTestEngine(t, rm)

	rec := stamped("o1", "2024-01-01T10:00:00Z", nil)
	if _, err := e.Push(context.Background(), "orders", rec); !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("Expected SYNC_NOT_CONFIGURED, got %v", err)
	}
	if e.Status().PendingQueueLength != 0 {
		t.Error("Configuration failures must not be queued")
	}

	rm.storeErr = nil // configured but signed out
	if _, err := e.Push(context.Background(), "orders", rec); !errors.Is(err, errors.ErrNotAuthenticated) {
		t.Errorf("Expected SYNC_NOT_AUTHENTICATED, got %v", err)
	}
	if _, err := e.Push(context.Background(), "unknown", rec); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Expected a validation error for unknown entity, got %v", err)
	}
	if e.Status().PendingQueueLength != 0 {
		t.Error("Precondition failures must not be queued")
	}
}

// TestPushRejectedNotQueued tests that a permanent remote rejection is
// an error to the caller, not a queue entry.
func TestPushRejectedNotQueued(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	rm.fail("orders", errors.New(errors.ErrRemote, "payload rejected"))

	_, err := e.Push(context.Background(), "orders", stamped("o1", "2024-01-01T10:00:00Z", nil))
	if !errors.Is(err, errors.ErrRemote) {
		t.Errorf("Expected SYNC_REMOTE_REJECTED, got %v", err)
	}
	if e.Status().PendingQueueLength != 0 {
		t.Error("Rejections must not be queued")
	}
}

// TestPushTransientQueued tests that a network failure on direct push
// reports queued without an error.
func TestPushTransientQueued(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	rm.fail("orders", netErr())

	outcome, err := e.Push(context.Background(), "orders", stamped("o1", "2024-01-01T10:00:00Z", nil))
	if err != nil {
		t.Fatalf("Expected no error on transient failure, got %v", err)
	}
	if outcome != OutcomeQueued {
		t.Errorf("Expected OutcomeQueued, got %s", outcome)
	}
	if e.Status().PendingQueueLength != 1 {
		t.Errorf("Expected 1 pending entry, got %d", e.Status().PendingQueueLength)
	}
}

// TestPushDelete tests delete propagation including the queued path.
func TestPushDelete(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	rm.put("orders", models.WrapRecord(stamped("o1", "2024-01-01T10:00:00Z", nil), "owner-1", time.Now()))

	outcome, err := e.PushDelete(context.Background(), "orders", "o1")
	if err != nil || outcome != OutcomeAcked {
		t.Fatalf("Expected acked delete, got %s (%v)", outcome, err)
	}
	if _, ok := rm.get("orders", "o1"); ok {
		t.Error("Expected the record gone remotely")
	}

	rm.fail("orders", netErr())
	outcome, err = e.PushDelete(context.Background(), "orders", "o2")
	if err != nil || outcome != OutcomeQueued {
		t.Fatalf("Expected queued delete, got %s (%v)", outcome, err)
	}

	rm.fail("orders", nil)
	e.Drain(context.Background())
	if e.Status().PendingQueueLength != 0 {
		t.Errorf("Expected the delete drained, got %d pending", e.Status().PendingQueueLength)
	}
}

// TestFullSyncSingleFlight tests that overlapping passes are refused.
func TestFullSyncSingleFlight(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	e.mu.Lock()
	e.syncing = true
	e.mu.Unlock()

	if _, err := e.FullSync(context.Background()); !errors.Is(err, errors.ErrSyncInProgress) {
		t.Errorf("Expected SYNC_IN_PROGRESS, got %v", err)
	}

	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()

	if _, err := e.FullSync(context.Background()); err != nil {
		t.Errorf("Expected the next pass to run, got %v", err)
	}
}

// TestCancelledSyncKeepsWatermark tests that cancellation aborts the
// pass without moving the watermark.
func TestCancelledSyncKeepsWatermark(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.FullSync(ctx); !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("Expected a cancellation error, got %v", err)
	}
	if !e.Status().LastSyncTime.IsZero() {
		t.Error("Expected the watermark untouched after cancellation")
	}
}

// TestHandleRemoteChange tests targeted merging of live change events.
func TestHandleRemoteChange(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	if err := e.local.PutRecord("orders", stamped("o1", "2024-01-01T10:00:00Z",
		map[string]interface{}{"status": "draft"})); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	// Stale event loses.
	e.handleRemoteChange(remote.ChangeEvent{
		Entity:  "orders",
		Action:  models.ActionUpsert,
		Payload: stamped("o1", "2024-01-01T09:00:00Z", map[string]interface{}{"status": "old"}),
	})
	got, _ := e.local.GetRecord("orders", "o1")
	if got["status"] != "draft" {
		t.Errorf("Expected the stale event ignored, got %v", got)
	}

	// Newer event wins.
	e.handleRemoteChange(remote.ChangeEvent{
		Entity:  "orders",
		Action:  models.ActionUpsert,
		Payload: stamped("o1", "2024-01-01T11:00:00Z", map[string]interface{}{"status": "shipped"}),
	})
	got, _ = e.local.GetRecord("orders", "o1")
	if got["status"] != "shipped" {
		t.Errorf("Expected the newer event applied, got %v", got)
	}

	// Delete removes the record.
	e.handleRemoteChange(remote.ChangeEvent{
		Entity:  "orders",
		Action:  models.ActionDelete,
		Payload: models.Record{"id": "o1"},
	})
	got, _ = e.local.GetRecord("orders", "o1")
	if got != nil {
		t.Errorf("Expected the record deleted, got %v", got)
	}

	// Events for unknown entities or without ids are ignored quietly.
	e.handleRemoteChange(remote.ChangeEvent{Entity: "nonsense", Action: models.ActionUpsert})
	e.handleRemoteChange(remote.ChangeEvent{Entity: "orders", Action: models.ActionUpsert, Payload: models.Record{}})
}

// TestDebouncedMutationSync tests that a burst of local writes
// collapses into one incremental sync after the quiet window.
func TestDebouncedMutationSync(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	for i, id := range []string{"o1", "o2", "o3"} {
		rec := stamped(id, time.Date(2024, 1, 1, 10, i, 0, 0, time.UTC).Format(time.RFC3339), nil)
		if err := e.local.PutRecord("orders", rec); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}
		e.OnLocalMutation("orders", models.ActionUpsert, rec)
	}
	e.OnLocalMutation("unknown", models.ActionUpsert, stamped("x1", "2024-01-01T10:00:00Z", nil)) // ignored

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := rm.get("orders", "o3"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for the debounced flush")
		case <-time.After(10 * time.Millisecond):
		}
	}

	rm.mu.Lock()
	upserts := rm.upserts
	rm.mu.Unlock()
	if upserts != 3 {
		t.Errorf("Expected exactly one batched flush (3 upserts), got %d", upserts)
	}
}

// TestLocalDeletePropagated tests that a buffered local delete reaches
// the remote store and that the record stays gone locally afterwards.
func TestLocalDeletePropagated(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	order := stamped("o1", "2024-01-01T10:00:00Z", map[string]interface{}{"status": "draft"})
	if err := e.local.PutRecord("orders", order); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	if _, err := e.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if _, ok := rm.get("orders", "o1"); !ok {
		t.Fatal("Expected the order pushed before deleting it")
	}

	if err := e.local.DeleteRecord("orders", "o1"); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	e.OnLocalMutation("orders", models.ActionDelete, models.Record{"id": "o1"})

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := rm.get("orders", "o1"); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for the delete to propagate")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The next pass must not bring the deleted record back.
	if _, err := e.FullSync(context.Background()); err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	got, err := e.local.GetRecord("orders", "o1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected the deleted order to stay gone, got %v", got)
	}
}

// TestEditThenDeleteFlushesDelete tests that an edit followed by a
// delete of the same record inside one burst flushes as a delete only.
func TestEditThenDeleteFlushesDelete(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	rm.put("orders", models.WrapRecord(
		stamped("o1", "2024-01-01T10:00:00Z", nil), "owner-1", time.Now()))

	edited := stamped("o1", "2024-01-01T10:05:00Z", map[string]interface{}{"status": "paid"})
	e.OnLocalMutation("orders", models.ActionUpsert, edited)
	e.OnLocalMutation("orders", models.ActionDelete, models.Record{"id": "o1"})

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := rm.get("orders", "o1"); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for the delete to propagate")
		case <-time.After(10 * time.Millisecond):
		}
	}

	rm.mu.Lock()
	upserts := rm.upserts
	rm.mu.Unlock()
	if upserts != 0 {
		t.Errorf("Expected the superseded edit never pushed, got %d upserts", upserts)
	}
}

// TestPushStaleSkipped tests that pushing a copy older than the stored
// one is skipped quietly: the remote keeps its record and nothing is
// queued.
func TestPushStaleSkipped(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	shipped := stamped("1001", "2024-01-01T10:05:00Z", map[string]interface{}{"status": "shipped"})
	rm.put("orders", models.WrapRecord(shipped, "owner-1", time.Now()))

	stale := stamped("1001", "2024-01-01T10:00:00Z", map[string]interface{}{"status": "draft"})
	outcome, err := e.Push(context.Background(), "orders", stale)
	if err != nil {
		t.Fatalf("Expected a stale push to succeed quietly, got %v", err)
	}
	if outcome != OutcomeStale {
		t.Errorf("Expected OutcomeStale, got %s", outcome)
	}
	if e.Status().PendingQueueLength != 0 {
		t.Errorf("Stale pushes must not be queued, got %d pending", e.Status().PendingQueueLength)
	}

	env, _ := rm.get("orders", "1001")
	if env.Data["status"] != "shipped" {
		t.Errorf("Expected the remote copy untouched, got %v", env.Data)
	}
}

// TestFullSyncSkipsStaleLocalCopy tests a cross-device race: device B
// updated the record after this device's local copy, so the pass must
// keep the remote version and pull it down instead of clobbering it.
func TestFullSyncSkipsStaleLocalCopy(t *testing.T) {
	rm := newFakeRemote("owner-1")
	e := newTestEngine(t, rm)

	local := stamped("1001", "2024-01-01T10:00:00Z", map[string]interface{}{"status": "draft"})
	if err := e.local.PutRecord("orders", local); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	shipped := stamped("1001", "2024-01-01T10:05:00Z", map[string]interface{}{"status": "shipped"})
	rm.put("orders", models.WrapRecord(shipped, "owner-1", time.Now()))

	report, err := e.FullSync(context.Background())
	if err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("Expected 1 skipped push, got %d", report.Skipped)
	}

	env, _ := rm.get("orders", "1001")
	if env.Data["status"] != "shipped" {
		t.Errorf("Expected the newer remote copy kept, got %v", env.Data)
	}
	got, _ := e.local.GetRecord("orders", "1001")
	if got["status"] != "shipped" {
		t.Errorf("Expected the local copy caught up on pull, got %v", got)
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("Bad timestamp %q: %v", s, err)
	}
	return ts
}
