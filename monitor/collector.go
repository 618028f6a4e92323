package monitor

import (
	"sync"
	"time"
)

type MetricsCollector interface {
	Record(metrics CallMetrics)
	Flush() Summary
}

type InMemoryCollector struct {
	mu            sync.RWMutex
	calls         int
	errors        int
	byOp          map[string]int
	byOutcome     map[string]int
	totalDuration time.Duration
	startTime     time.Time
}

func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		byOp:      make(map[string]int),
		byOutcome: make(map[string]int),
		startTime: time.Now(),
	}
}

func (c *InMemoryCollector) Record(metrics CallMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	c.byOp[metrics.Op]++
	c.totalDuration += metrics.Duration
	if !metrics.Success {
		c.errors++
		return
	}
	c.byOutcome[metrics.Outcome]++
}

func (c *InMemoryCollector) Flush() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{
		TotalCalls: c.calls,
		Errors:     c.errors,
		ByOp:       make(map[string]int, len(c.byOp)),
		ByOutcome:  make(map[string]int, len(c.byOutcome)),
		StartTime:  c.startTime,
		EndTime:    time.Now(),
	}
	for k, v := range c.byOp {
		s.ByOp[k] = v
	}
	for k, v := range c.byOutcome {
		s.ByOutcome[k] = v
	}
	if c.calls > 0 {
		s.AvgLatencyMs = float64(c.totalDuration.Milliseconds()) / float64(c.calls)
	}
	return s
}

func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
	c.errors = 0
	c.byOp = make(map[string]int)
	c.byOutcome = make(map[string]int)
	c.totalDuration = 0
	c.startTime = time.Now()
}

type NoOpCollector struct{}

func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (c *NoOpCollector) Record(metrics CallMetrics) {}

func (c *NoOpCollector) Flush() Summary {
	return Summary{}
}
