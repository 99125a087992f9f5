// Package metrics collects the service's benchmark counters: lookup
// traffic per path, false positive accounting for the handle filter,
// write outcomes, and the breaker state gauge. Counters are served as a
// JSON snapshot; exporting to an external metrics system is out of
// scope for the demo.
package metrics

import (
	"sync"
	"time"
)

// Write outcome labels.
const (
	WriteSynced   = "synced"   // insert reached the authoritative store
	WriteBuffered = "buffered" // caller asked for the buffered path
	WriteDiverted = "diverted" // circuit open, write diverted to the buffer
	WriteDrained  = "drained"  // buffered event replayed into the store
	WriteConflict = "conflict" // handle already taken
	WriteFailed   = "failed"   // downstream failure surfaced to the caller
)

type Metrics struct {
	mutex sync.RWMutex

	startTime time.Time

	lookups       map[string]int64
	authoritative map[string]int64

	filterNegatives int64
	truePositives   int64
	falsePositives  int64

	writes map[string]int64

	breakerState       int32
	breakerTransitions int64
}

func New() *Metrics {
	return &Metrics{
		startTime:     time.Now(),
		lookups:       make(map[string]int64),
		authoritative: make(map[string]int64),
		writes:        make(map[string]int64),
	}
}

// IncLookup counts one availability check on the given path.
func (m *Metrics) IncLookup(path string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lookups[path]++
}

// IncAuthoritativeQuery counts one query against the authoritative
// store on the given path.
func (m *Metrics) IncAuthoritativeQuery(path string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.authoritative[path]++
}

// IncFilterNegative counts a definite-absent filter answer (no
// authoritative I/O performed).
func (m *Metrics) IncFilterNegative() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.filterNegatives++
}

// IncTruePositive counts a filter positive confirmed by the store.
func (m *Metrics) IncTruePositive() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.truePositives++
}

// IncFalsePositive counts a filter positive the store denied. Operators
// compare this against the target rate to spot sizing drift.
func (m *Metrics) IncFalsePositive() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.falsePositives++
}

// IncWrite counts one write outcome (see the Write* labels).
func (m *Metrics) IncWrite(outcome string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.writes[outcome]++
}

// SetBreakerState records the breaker's numeric state and counts the
// transition.
func (m *Metrics) SetBreakerState(code int32) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.breakerState != code {
		m.breakerTransitions++
	}
	m.breakerState = code
}

// Snapshot is the JSON shape served by the ops endpoint.
type Snapshot struct {
	UptimeSeconds        float64          `json:"uptime_seconds"`
	Lookups              map[string]int64 `json:"lookups"`
	AuthoritativeQueries map[string]int64 `json:"authoritative_queries"`
	FilterNegatives      int64            `json:"filter_negatives"`
	TruePositives        int64            `json:"true_positives"`
	FalsePositives       int64            `json:"false_positives"`
	ObservedFPRate       float64          `json:"observed_fp_rate"`
	Writes               map[string]int64 `json:"writes"`
	BreakerState         int32            `json:"breaker_state"`
	BreakerTransitions   int64            `json:"breaker_transitions"`
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		UptimeSeconds:        time.Since(m.startTime).Seconds(),
		Lookups:              make(map[string]int64, len(m.lookups)),
		AuthoritativeQueries: make(map[string]int64, len(m.authoritative)),
		FilterNegatives:      m.filterNegatives,
		TruePositives:        m.truePositives,
		FalsePositives:       m.falsePositives,
		Writes:               make(map[string]int64, len(m.writes)),
		BreakerState:         m.breakerState,
		BreakerTransitions:   m.breakerTransitions,
	}
	for k, v := range m.lookups {
		snap.Lookups[k] = v
	}
	for k, v := range m.authoritative {
		snap.AuthoritativeQueries[k] = v
	}
	for k, v := range m.writes {
		snap.Writes[k] = v
	}

	// Observed rate over resolved filter positives: FP / (FP + TP).
	if resolved := m.falsePositives + m.truePositives; resolved > 0 {
		snap.ObservedFPRate = float64(m.falsePositives) / float64(resolved)
	}

	return snap
}
