package monitor

import "time"

// CallMetrics describes one call into the matching policy.
type CallMetrics struct {
	Op       string        `json:"op"`
	Outcome  string        `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
}

type Summary struct {
	TotalCalls   int            `json:"total_calls"`
	Errors       int            `json:"errors"`
	ByOp         map[string]int `json:"by_op"`
	ByOutcome    map[string]int `json:"by_outcome"`
	AvgLatencyMs float64        `json:"avg_latency_ms"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
}
