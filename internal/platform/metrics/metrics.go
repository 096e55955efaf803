package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector keeps process-local HTTP and advance-flow counters exposed on
// /metrics as JSON.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64
	sseClients      int64

	mu         sync.Mutex
	advances   map[string]uint64
	rejectedBy map[string]uint64
}

func New() *Collector {
	return &Collector{advances: map[string]uint64{}, rejectedBy: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// AdvanceStatus counts advances entering status (pending on creation).
func (c *Collector) AdvanceStatus(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.advances[status]++
	c.mu.Unlock()
}

// AdvanceRefused counts requests turned away, keyed by error code.
func (c *Collector) AdvanceRefused(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rejectedBy[code]++
	c.mu.Unlock()
}

func (c *Collector) StreamOpened() {
	if c != nil {
		atomic.AddInt64(&c.sseClients, 1)
	}
}

func (c *Collector) StreamClosed() {
	if c != nil {
		atomic.AddInt64(&c.sseClients, -1)
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	advances := make(map[string]uint64, len(c.advances))
	for k, v := range c.advances {
		advances[k] = v
	}
	refused := make(map[string]uint64, len(c.rejectedBy))
	for k, v := range c.rejectedBy {
		refused[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"sseClients":       atomic.LoadInt64(&c.sseClients),
		"advancesByStatus": advances,
		"advancesRefused":  refused,
	}
}
