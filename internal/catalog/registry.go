package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// Source supplies configuration generations to the registry.
type Source interface {
	Name() string
	Load(ctx context.Context) (Snapshot, error)
}

// RefreshStats tracks reload health for the status endpoint.
type RefreshStats struct {
	RefreshCount       int64         `json:"refresh_count"`
	RefreshErrors      int64         `json:"refresh_errors"`
	LastRefreshTime    time.Time     `json:"last_refresh_time"`
	LastRefreshLatency time.Duration `json:"last_refresh_latency"`
	LastError          string        `json:"last_error,omitempty"`
}

// RefreshRecorder receives refresh outcomes for instrumentation.
type RefreshRecorder interface {
	RecordCatalogRefresh(success bool)
}

// Registry keeps a Catalog in sync with a Source: one load at Start, then a
// periodic refresh. A failed refresh keeps the previous generation.
type Registry struct {
	catalog       *Catalog
	source        Source
	refreshPeriod time.Duration
	recorder      RefreshRecorder
	stopChan      chan struct{}
	stopOnce      sync.Once

	mu    sync.RWMutex
	stats RefreshStats
}

// NewRegistry creates a registry over catalog fed by source.
func NewRegistry(catalog *Catalog, source Source, refreshPeriod time.Duration) *Registry {
	return &Registry{
		catalog:       catalog,
		source:        source,
		refreshPeriod: refreshPeriod,
		stopChan:      make(chan struct{}),
	}
}

// SetRecorder attaches an instrumentation sink. Call before Start.
func (r *Registry) SetRecorder(rec RefreshRecorder) {
	r.recorder = rec
}

// Start performs the initial load and begins the background refresh. An
// initial load failure is returned to the caller so strict boots can abort.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		return fmt.Errorf("initial catalog load failed: %w", err)
	}
	go r.refreshLoop(ctx)
	return nil
}

// Stop halts the background refresh. Safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

func (r *Registry) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.refreshPeriod)
	defer ticker.Stop()

	const refreshTimeout = 5 * time.Second

	for {
		select {
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
			if err := r.Refresh(refreshCtx); err != nil {
				logger.Catalog().Warn().Err(err).Str("source", r.source.Name()).Msg("Catalog refresh failed; keeping previous generation")
			}
			cancel()
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Refresh loads one snapshot and installs it. A snapshot with nil demands
// leaves the current demand generation in place, so demand sets bootstrapped
// synthetically survive file-only reloads.
func (r *Registry) Refresh(ctx context.Context) error {
	start := time.Now()

	snap, err := r.source.Load(ctx)
	if err != nil {
		r.recordError(err)
		return fmt.Errorf("load from %s: %w", r.source.Name(), err)
	}

	if snap.Demands != nil {
		r.catalog.SetDemands(snap.Demands)
	}
	if snap.SSPs != nil {
		r.catalog.SetSSPInfo(snap.SSPs)
	}
	r.catalog.Update(snap.SSPPlacements, snap.DSPPlacements)

	r.recordSuccess(time.Since(start))
	return nil
}

// Stats returns a copy of the refresh statistics.
func (r *Registry) Stats() RefreshStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Registry) recordSuccess(latency time.Duration) {
	r.mu.Lock()
	r.stats.RefreshCount++
	r.stats.LastRefreshTime = time.Now()
	r.stats.LastRefreshLatency = latency
	r.stats.LastError = ""
	r.mu.Unlock()
	if r.recorder != nil {
		r.recorder.RecordCatalogRefresh(true)
	}
}

func (r *Registry) recordError(err error) {
	r.mu.Lock()
	r.stats.RefreshCount++
	r.stats.RefreshErrors++
	r.stats.LastError = err.Error()
	r.mu.Unlock()
	if r.recorder != nil {
		r.recorder.RecordCatalogRefresh(false)
	}
}
