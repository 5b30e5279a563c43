package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	requestLatency map[string]time.Duration
	errorCount     map[string]int64
	fanoutSent     map[string]int64
	fanoutDropped  map[string]int64
	slaBreaches    int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests         map[string]int64 `json:"requests"`
	AvgLatencyMillis map[string]int64 `json:"avg_latency_ms"`
	Errors           map[string]int64 `json:"errors"`
	FanoutDelivered  map[string]int64 `json:"fanout_delivered"`
	FanoutDropped    map[string]int64 `json:"fanout_dropped"`
	SLABreaches      int64            `json:"sla_breaches"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		requestLatency: make(map[string]time.Duration),
		errorCount:     make(map[string]int64),
		fanoutSent:     make(map[string]int64),
		fanoutDropped:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatency[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordFanout counts deliveries and drops per event kind.
func (m *Metrics) RecordFanout(kind string, delivered, dropped int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fanoutSent[kind] += int64(delivered)
	if dropped > 0 {
		m.fanoutDropped[kind] += int64(dropped)
	}
}

// RecordSLABreach counts breach alerts raised by the watcher.
func (m *Metrics) RecordSLABreach() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaBreaches++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	avg := make(map[string]int64, len(m.requestLatency))
	for key, total := range m.requestLatency {
		if n := m.requestCount[key]; n > 0 {
			avg[key] = (total / time.Duration(n)).Milliseconds()
		}
	}
	return Snapshot{
		Requests:         copyCounts(m.requestCount),
		AvgLatencyMillis: avg,
		Errors:           copyCounts(m.errorCount),
		FanoutDelivered:  copyCounts(m.fanoutSent),
		FanoutDropped:    copyCounts(m.fanoutDropped),
		SLABreaches:      m.slaBreaches,
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
