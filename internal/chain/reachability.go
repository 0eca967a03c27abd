package chain

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/tokenscout/internal/config"
)

// BlockNumberer is the single call the reachability probe needs.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// ReachabilityMonitor tracks whether the network answers. The state is
// refreshed by Run in the background and on demand when it is stale.
type ReachabilityMonitor struct {
	node     BlockNumberer
	interval time.Duration
	timeout  time.Duration

	mu        sync.Mutex
	reachable bool
	checkedAt time.Time
}

// NewReachabilityMonitor creates a monitor probing node.
func NewReachabilityMonitor(node BlockNumberer) *ReachabilityMonitor {
	return &ReachabilityMonitor{
		node:     node,
		interval: config.ReachabilityInterval,
		timeout:  config.ReachabilityTimeout,
	}
}

// Run probes every interval until ctx is cancelled.
func (m *ReachabilityMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("reachability monitor stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// IsReachable returns the cached state, probing first if it is older than
// the probe interval.
func (m *ReachabilityMonitor) IsReachable(ctx context.Context) bool {
	m.mu.Lock()
	fresh := !m.checkedAt.IsZero() && time.Since(m.checkedAt) < m.interval
	reachable := m.reachable
	m.mu.Unlock()

	if fresh {
		return reachable
	}
	return m.Probe(ctx)
}

// Probe queries the latest block and records the result.
func (m *ReachabilityMonitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.node.BlockNumber(probeCtx)
	reachable := err == nil

	m.mu.Lock()
	changed := m.checkedAt.IsZero() || m.reachable != reachable
	m.reachable = reachable
	m.checkedAt = time.Now()
	m.mu.Unlock()

	if changed {
		slog.Info("network reachability changed", "reachable", reachable, "error", err)
	}
	return reachable
}
