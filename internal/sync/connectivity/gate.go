// Package connectivity tracks whether the sync server is reachable and
// triggers a drain when it becomes reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/menuscan/backend/internal/logging"
	syncpkg "github.com/kimhsiao/menuscan/backend/internal/sync"
	"github.com/kimhsiao/menuscan/backend/internal/telemetry"
)

// Drainer runs a sync drain. *syncpkg.SyncEngine satisfies it.
type Drainer interface {
	Drain(ctx context.Context) syncpkg.DrainResult
}

// Gate holds the last known connectivity status.
type Gate struct {
	prober  Prober
	metrics *telemetry.Metrics

	mu        sync.RWMutex
	online    bool
	checkedAt time.Time
	drainer   Drainer
}

// NewGate creates a gate with the given initial status.
func NewGate(prober Prober, initial bool, metrics *telemetry.Metrics) *Gate {
	metrics.SetOnline(initial)
	return &Gate{
		prober:  prober,
		metrics: metrics,
		online:  initial,
	}
}

// SetDrainer sets the drain target used by CheckAndSync.
func (g *Gate) SetDrainer(d Drainer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drainer = d
}

// IsOnline returns the last known status.
func (g *Gate) IsOnline() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.online
}

// CheckedAt returns when the status was last recorded.
func (g *Gate) CheckedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.checkedAt
}

// Set records a status and reports whether it changed from offline to online.
func (g *Gate) Set(online bool) bool {
	g.mu.Lock()
	was := g.online
	g.online = online
	g.checkedAt = time.Now()
	g.mu.Unlock()

	g.metrics.SetOnline(online)
	if was != online {
		logging.Info("connectivity changed", map[string]interface{}{
			"was_online": was,
			"is_online":  online,
		})
	}
	return !was && online
}

// Refresh probes the server and records the result. It reports whether the
// status changed from offline to online.
func (g *Gate) Refresh(ctx context.Context) bool {
	if g.prober == nil {
		return false
	}
	return g.Set(g.prober.Probe(ctx))
}

// SetOnline records a status pushed by the host environment. A change from
// offline to online runs CheckAndSync before returning.
func (g *Gate) SetOnline(ctx context.Context, online bool) bool {
	cameOnline := g.Set(online)
	if cameOnline {
		g.CheckAndSync(ctx)
	}
	return cameOnline
}

// CheckAndSync drains the queue when online and does nothing otherwise.
func (g *Gate) CheckAndSync(ctx context.Context) syncpkg.DrainResult {
	if !g.IsOnline() {
		return syncpkg.DrainResult{StartedAt: time.Now(), Offline: true}
	}

	g.mu.RLock()
	d := g.drainer
	g.mu.RUnlock()
	if d == nil {
		return syncpkg.DrainResult{StartedAt: time.Now()}
	}
	return d.Drain(ctx)
}
