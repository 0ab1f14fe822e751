package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters covering the HTTP surface plus
// the asynchronous paths (broadcast fanout, webhook delivery, scheduled
// sends).
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	broadcastCount map[string]int64
	webhookCount   map[string]int64
	scheduledCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		broadcastCount: make(map[string]int64),
		webhookCount:   make(map[string]int64),
		scheduledCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
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

// RecordBroadcast counts events fanned out to stream connections.
func (m *Metrics) RecordBroadcast(eventType string, connections int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastCount[eventType] += int64(connections)
}

// RecordWebhook counts webhook delivery outcomes.
func (m *Metrics) RecordWebhook(event string, ok bool) {
	if m == nil {
		return
	}
	key := event + "|" + outcome(ok)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookCount[key]++
}

// RecordScheduledSend counts scheduled delivery outcomes.
func (m *Metrics) RecordScheduledSend(ok bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduledCount[outcome(ok)]++
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
