package http

import (
	"sync"
	"time"
)

// Metrics tracks aggregate statistics for API calls across a run.
type Metrics interface {
	// RecordRequest records one API request attempt.
	RecordRequest(provider string)

	// RecordDuration records request duration.
	RecordDuration(provider string, duration time.Duration)

	// RecordTokens records token usage.
	RecordTokens(provider string, tokensIn, tokensOut int)

	// RecordError records an error by type.
	RecordError(provider string, errType ErrorType)

	// Stats returns a snapshot of the current statistics.
	Stats() Stats
}

// Stats is an aggregate snapshot.
type Stats struct {
	TotalRequests  int
	TotalTokensIn  int
	TotalTokensOut int
	TotalDuration  time.Duration
	ErrorCount     int
	ByProvider     map[string]ProviderStats
}

// ProviderStats contains per-provider statistics.
type ProviderStats struct {
	Requests  int
	TokensIn  int
	TokensOut int
	Duration  time.Duration
	Errors    int
}

// DefaultMetrics provides in-memory metrics tracking, safe for use from
// concurrent chunk workers.
type DefaultMetrics struct {
	mu    sync.RWMutex
	stats Stats
}

// NewDefaultMetrics creates an empty metrics tracker.
func NewDefaultMetrics() *DefaultMetrics {
	return &DefaultMetrics{
		stats: Stats{ByProvider: make(map[string]ProviderStats)},
	}
}

// RecordRequest increments the request counters.
func (m *DefaultMetrics) RecordRequest(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalRequests++
	ps := m.stats.ByProvider[provider]
	ps.Requests++
	m.stats.ByProvider[provider] = ps
}

// RecordDuration adds to the duration counters.
func (m *DefaultMetrics) RecordDuration(provider string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalDuration += duration
	ps := m.stats.ByProvider[provider]
	ps.Duration += duration
	m.stats.ByProvider[provider] = ps
}

// RecordTokens adds to the token counters.
func (m *DefaultMetrics) RecordTokens(provider string, tokensIn, tokensOut int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalTokensIn += tokensIn
	m.stats.TotalTokensOut += tokensOut
	ps := m.stats.ByProvider[provider]
	ps.TokensIn += tokensIn
	ps.TokensOut += tokensOut
	m.stats.ByProvider[provider] = ps
}

// RecordError increments the error counters.
func (m *DefaultMetrics) RecordError(provider string, errType ErrorType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.ErrorCount++
	ps := m.stats.ByProvider[provider]
	ps.Errors++
	m.stats.ByProvider[provider] = ps
}

// Stats returns a copy of the current statistics.
func (m *DefaultMetrics) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := m.stats
	snapshot.ByProvider = make(map[string]ProviderStats, len(m.stats.ByProvider))
	for k, v := range m.stats.ByProvider {
		snapshot.ByProvider[k] = v
	}
	return snapshot
}
