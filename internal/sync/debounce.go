package sync

import (
	stdsync "sync"
	"time"

	"github.com/yhsiang/shopledger/internal/models"
)

// DefaultDebounceWindow is how long local writes must quiet down
// before a buffered flush fires.
const DefaultDebounceWindow = 500 * time.Millisecond

// Mutation is one buffered local change awaiting the debounced flush.
// Record carries the full record for upserts and at least the id for
// deletes.
type Mutation struct {
	Entity string
	Action string
	Record models.Record
}

// Debouncer collapses bursts of local mutations into a single flush.
// Every Notify resets the window, so the flush fires only once writes
// pause. Changes are buffered in first-notify order; repeated changes
// to the same record keep their position but carry the latest state,
// so each record reaches the flush exactly once per burst.
type Debouncer struct {
	window time.Duration
	flush  func(changes []Mutation)

	mu      stdsync.Mutex
	pending []Mutation
	index   map[string]int // entity/id -> position in pending
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a Debouncer; a zero window picks the default.
func NewDebouncer(window time.Duration, flush func(changes []Mutation)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window: window,
		flush:  flush,
		index:  make(map[string]int),
	}
}

// Notify buffers one change and restarts the window. A later change to
// the same record replaces the buffered one in place, so an edit
// followed by a delete flushes as a single delete.
func (d *Debouncer) Notify(m Mutation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	key := m.Entity + "/" + m.Record.ID()
	if pos, ok := d.index[key]; ok {
		d.pending[pos] = m
	} else {
		d.index[key] = len(d.pending)
		d.pending = append(d.pending, m)
	}

	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.fire)
	} else {
		d.timer.Reset(d.window)
	}
}

// fire runs on timer expiry and hands the buffer to the flush callback
// outside the lock, so the callback may Notify again.
func (d *Debouncer) fire() {
	d.mu.Lock()
	batch := d.take()
	d.mu.Unlock()

	if len(batch) > 0 {
		d.flush(batch)
	}
}

// Stop cancels the timer and flushes anything still buffered. Further
// notifications are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	batch := d.take()
	d.mu.Unlock()

	if len(batch) > 0 {
		d.flush(batch)
	}
}

// take drains the buffer. Caller holds the lock.
func (d *Debouncer) take() []Mutation {
	batch := d.pending
	d.pending = nil
	d.index = make(map[string]int)
	return batch
}
