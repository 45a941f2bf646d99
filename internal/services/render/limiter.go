package render

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL  = 5 * time.Minute
	limiterMaxHosts = 1024
)

type hostLimiter struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// hostLimiters hands out one rate limiter per host. Limiters idle for longer
// than the TTL are dropped, and the map never holds more than maxHosts entries.
// An idle limiter has a full bucket, so recreating it later is equivalent.
type hostLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	maxHosts  int
	hosts     map[string]*hostLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newHostLimiters(perSecond float64) *hostLimiters {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &hostLimiters{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		ttl:      limiterIdleTTL,
		maxHosts: limiterMaxHosts,
		hosts:    make(map[string]*hostLimiter),
		now:      time.Now,
	}
}

func (h *hostLimiters) get(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.lastSweep) >= h.ttl {
		h.sweepLocked(now)
	}

	entry, ok := h.hosts[host]
	if !ok {
		if len(h.hosts) >= h.maxHosts {
			h.sweepLocked(now)
			if len(h.hosts) >= h.maxHosts {
				h.evictOldestLocked()
			}
		}
		entry = &hostLimiter{limiter: rate.NewLimiter(h.limit, h.burst)}
		h.hosts[host] = entry
	}
	entry.lastUsed = now
	return entry.limiter
}

func (h *hostLimiters) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hosts)
}

func (h *hostLimiters) sweepLocked(now time.Time) {
	h.lastSweep = now
	for host, entry := range h.hosts {
		if now.Sub(entry.lastUsed) >= h.ttl {
			delete(h.hosts, host)
		}
	}
}

func (h *hostLimiters) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for host, entry := range h.hosts {
		if oldest == "" || entry.lastUsed.Before(oldestAt) {
			oldest, oldestAt = host, entry.lastUsed
		}
	}
	delete(h.hosts, oldest)
}
