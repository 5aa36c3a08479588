// Package scheduler drives connectivity probing and periodic drains in the background.
package scheduler

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/logging"
	syncpkg "github.com/kimhsiao/menuscan/backend/internal/sync"
	"github.com/kimhsiao/menuscan/backend/internal/sync/connectivity"
	"github.com/kimhsiao/menuscan/backend/internal/sync/queue"
)

// Scheduler manages background sync operations.
type Scheduler struct {
	engine        syncpkg.SyncEngineInterface
	gate          *connectivity.Gate
	queue         *queue.Queue
	syncInterval  time.Duration
	probeInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	syncWG        sync.WaitGroup
	mu            sync.RWMutex
	isRunning     bool
	stopped       bool
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	SyncInterval  time.Duration // How often to drain while online (default: 5 minutes)
	ProbeInterval time.Duration // How often to probe connectivity (default: 30 seconds)
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SyncInterval:  5 * time.Minute,
		ProbeInterval: 30 * time.Second,
	}
}

// NewScheduler creates a new Scheduler. The gate's drainer is set to engine.
func NewScheduler(engine syncpkg.SyncEngineInterface, gate *connectivity.Gate, q *queue.Queue, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	gate.SetDrainer(engine)

	return &Scheduler{
		engine:        engine,
		gate:          gate,
		queue:         q,
		syncInterval:  config.SyncInterval,
		probeInterval: config.ProbeInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start probes once, drains if online, then starts the probe and periodic
// sync loops. It returns without waiting for the initial drain.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning || s.stopped {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(3)

	go func() {
		defer s.wg.Done()
		s.gate.Refresh(ctx)
		s.runSync(ctx, "startup")
	}()

	go s.probeLoop(ctx)

	go s.periodicSyncLoop(ctx)

	logging.Info("Background sync scheduler started", map[string]interface{}{
		"sync_interval":  s.syncInterval.String(),
		"probe_interval": s.probeInterval.String(),
	})
}

// Stop stops the background sync scheduler gracefully.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.stopped = true
	s.mu.Unlock()

	// Signal stop to all goroutines
	close(s.stopCh)

	s.wg.Wait()
	s.syncWG.Wait()

	logging.Info("Background sync scheduler stopped")
}

// SetOnlineStatus records a connectivity change pushed by the host.
// Coming online triggers a drain in the background.
func (s *Scheduler) SetOnlineStatus(ctx context.Context, isOnline bool) {
	if s.gate.Set(isOnline) {
		s.TriggerSync(ctx)
	}
}

// probeLoop refreshes connectivity and drains on an offline to online change.
func (s *Scheduler) probeLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.gate.Refresh(ctx) {
				s.TriggerSync(ctx)
			}
		}
	}
}

// periodicSyncLoop drains on a fixed interval.
func (s *Scheduler) periodicSyncLoop(ctx context.Context) {
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
			if !s.gate.IsOnline() {
				continue
			}
			s.TriggerSync(ctx)
		}
	}
}

// runSync executes one CheckAndSync and logs the outcome.
func (s *Scheduler) runSync(ctx context.Context, reason string) syncpkg.DrainResult {
	result := s.gate.CheckAndSync(ctx)

	switch {
	case result.Offline:
		logging.Debug("Skipping sync, offline", map[string]interface{}{"reason": reason})
	case result.Coalesced:
		logging.Debug("Sync already in progress, coalesced", map[string]interface{}{"reason": reason})
	default:
		fields := map[string]interface{}{
			"reason":    reason,
			"passes":    result.Passes,
			"attempted": result.Attempted,
			"delivered": result.Delivered,
			"failed":    result.Failed,
		}
		if result.Failed > 0 {
			logging.Get().WarnWithCode("Sync completed with failures", string(apperrors.ErrDeliveryFailed), nil, fields)
		} else {
			logging.Info("Sync completed", fields)
		}
	}
	return result
}

// TriggerSync starts a drain in the background. It returns false when offline.
// Triggers that arrive while a drain is running are coalesced by the engine.
func (s *Scheduler) TriggerSync(ctx context.Context) bool {
	if !s.gate.IsOnline() {
		return false
	}

	s.syncWG.Add(1)
	go func() {
		defer s.syncWG.Done()
		s.runSync(ctx, "trigger")
	}()
	return true
}

// SyncNow drains and waits for the result.
func (s *Scheduler) SyncNow(ctx context.Context) syncpkg.DrainResult {
	return s.runSync(ctx, "manual")
}

// SchedulerStatus reports scheduler, connectivity and queue state.
type SchedulerStatus struct {
	IsRunning    bool                 `json:"isRunning" yaml:"isRunning"`
	IsOnline     bool                 `json:"isOnline" yaml:"isOnline"`
	SyncStatus   syncpkg.SyncStatus   `json:"syncStatus" yaml:"syncStatus"`
	LastSyncTime *time.Time           `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`
	LastResult   *syncpkg.DrainResult `json:"lastResult,omitempty" yaml:"lastResult,omitempty"`
	PendingItems int                  `json:"pendingItems" yaml:"pendingItems"`
	QueueStats   queue.Stats          `json:"queueStats" yaml:"queueStats"`
}

// GetStatus returns the current status of the scheduler.
func (s *Scheduler) GetStatus(ctx context.Context) (SchedulerStatus, error) {
	status := SchedulerStatus{
		IsRunning:    s.IsRunning(),
		IsOnline:     s.gate.IsOnline(),
		SyncStatus:   s.engine.Status(),
		LastSyncTime: s.engine.LastSync(),
		LastResult:   s.engine.LastResult(),
	}

	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return status, err
	}
	status.QueueStats = stats
	status.PendingItems = stats.Total
	return status, nil
}

// IsOnline returns the gate's last known status.
func (s *Scheduler) IsOnline() bool {
	return s.gate.IsOnline()
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
