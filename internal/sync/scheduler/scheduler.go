// Package scheduler provides background sync scheduling: periodic full
// passes while online and steady queue draining so offline work ships
// as soon as connectivity returns.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/yhsiang/shopledger/internal/errors"
	"github.com/yhsiang/shopledger/internal/logging"
	syncpkg "github.com/yhsiang/shopledger/internal/sync"
	"github.com/yhsiang/shopledger/internal/sync/queue"
)

// Runner is what the scheduler drives. The sync engine satisfies it.
type Runner interface {
	FullSync(ctx context.Context) (*syncpkg.Report, error)
	Drain(ctx context.Context) queue.DrainResult
	Status() syncpkg.Status
}

// Config holds scheduler configuration.
type Config struct {
	SyncInterval  time.Duration // full pass cadence while online (default: 15 minutes)
	DrainInterval time.Duration // queue drain cadence (default: 1 minute)
	SyncTimeout   time.Duration // upper bound on one full pass (default: 5 minutes)
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:  15 * time.Minute,
		DrainInterval: 1 * time.Minute,
		SyncTimeout:   5 * time.Minute,
	}
}

// Scheduler runs the engine in the background. Full passes only fire
// while the scheduler believes it is online; the drain ticker runs
// regardless so queued work retries as soon as the network is back.
type Scheduler struct {
	runner        Runner
	syncInterval  time.Duration
	drainInterval time.Duration
	syncTimeout   time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.RWMutex
	isRunning bool
	isOnline  bool
}

// New creates a Scheduler. A nil config picks the defaults.
func New(runner Runner, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		runner:        runner,
		syncInterval:  config.SyncInterval,
		drainInterval: config.DrainInterval,
		syncTimeout:   config.SyncTimeout,
		stopCh:        make(chan struct{}),
		isOnline:      true,
	}
}

// Start launches the background loops. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(2)
	go s.syncLoop(ctx)
	go s.drainLoop(ctx)

	logging.Info("Background sync scheduler started", map[string]interface{}{
		"sync_interval":  s.syncInterval.String(),
		"drain_interval": s.drainInterval.String(),
	})
}

// Stop shuts the loops down and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Background sync scheduler stopped")
}

// SetOnlineStatus flips the connectivity hint. Offline suppresses full
// passes; draining keeps ticking either way.
func (s *Scheduler) SetOnlineStatus(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isOnline != online {
		logging.Info("Connectivity changed", map[string]interface{}{
			"online": online,
		})
	}
	s.isOnline = online
}

// IsOnline reports the current connectivity hint.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning reports whether the loops are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// syncLoop fires full passes on the sync interval while online.
func (s *Scheduler) syncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			s.runSync(ctx)
		}
	}
}

// drainLoop retries queued work on the drain interval, online or not;
// failed attempts stay queued and cost one round trip each.
func (s *Scheduler) drainLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.runner.Status().PendingQueueLength == 0 {
				continue
			}
			result := s.runner.Drain(ctx)
			if result.Processed > 0 {
				logging.Info("Background drain delivered queued work",
					map[string]interface{}{"processed": result.Processed, "failed": result.Failed})
			}
		}
	}
}

// runSync executes one bounded full pass. Overlap is handled by the
// engine's own single-flight guard.
func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	report, err := s.runner.FullSync(syncCtx)
	if err != nil {
		if errors.Is(err, errors.ErrSyncInProgress) {
			logging.Debug("Skipping periodic sync, a pass is already running")
			return
		}
		logging.ErrorWithCode("Periodic sync failed", string(errors.Code(err)), err)
		return
	}

	logging.Info("Periodic sync completed", map[string]interface{}{
		"pushed": report.Pushed,
		"pulled": report.Pulled,
		"queued": report.Queued,
	})
}

// TriggerSync starts an immediate pass in the background. Returns
// false when the scheduler is offline.
func (s *Scheduler) TriggerSync(ctx context.Context) bool {
	if !s.IsOnline() {
		return false
	}
	go s.runSync(ctx)
	return true
}

// SyncNow runs a full pass synchronously and returns its error.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncpkg.Report, error) {
	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	return s.runner.FullSync(syncCtx)
}

// Status combines the scheduler's own state with the engine's.
type Status struct {
	IsRunning bool           `json:"is_running"`
	IsOnline  bool           `json:"is_online"`
	Engine    syncpkg.Status `json:"engine"`
}

// GetStatus returns a point-in-time snapshot.
func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	running := s.isRunning
	online := s.isOnline
	s.mu.RUnlock()

	return Status{
		IsRunning: running,
		IsOnline:  online,
		Engine:    s.runner.Status(),
	}
}
