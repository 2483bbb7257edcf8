package collector

import (
	"sync"
	"time"
)

// HardwareCache wraps the expensive hardware sub-probe (CPU/RAM/disk
// inventory) with a TTL so repeated heartbeat ticks don't re-probe
// physical resources that change rarely, if ever, within a process
// lifetime.
type HardwareCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	lastProbe time.Time
	cached    *Hardware
	probeFn   func() *Hardware
}

// NewHardwareCache constructs a cache with the given TTL, probing via the
// package's real stdlib hardware probe.
func NewHardwareCache(ttl time.Duration) *HardwareCache {
	return &HardwareCache{ttl: ttl, probeFn: probeHardware}
}

// Get returns the cached snapshot if still fresh, otherwise re-probes.
// A probe failure degrades to a nil *Hardware (omitted from the
// envelope) rather than propagating an error.
func (c *HardwareCache) Get() *Hardware {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && time.Since(c.lastProbe) < c.ttl {
		return c.cached
	}

	c.cached = c.probeFn()
	c.lastProbe = time.Now()
	return c.cached
}

// probeHardware gathers CPU count from the runtime (the only hardware
// fact portable across platforms without cgo or a platform-specific
// library); RAM and disk totals are left nil since the examples pack
// carries no portable stdlib-only probe for them.
func probeHardware() *Hardware {
	cores := numCPU()
	return &Hardware{CPUCores: &cores}
}
