package localize

import (
	"sort"
	"sync"
)

// CycleState is the latest scored cycle of one sensor
type CycleState struct {
	Summary CycleSummary
	Scored  []ScoredPose
}

// StateTracker keeps the latest cycle of every sensor for HTTP endpoints
type StateTracker struct {
	mu     sync.RWMutex
	cycles map[string]*CycleState
	cycle  uint64
}

// NewStateTracker creates an empty state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{
		cycles: make(map[string]*CycleState),
	}
}

// Record stores the result of scoring one sensor's cycle. The scored slice
// is retained and must not be modified afterwards.
func (st *StateTracker) Record(summary CycleSummary, scored []ScoredPose) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cycles[summary.SensorID] = &CycleState{Summary: summary, Scored: scored}
}

// CompleteCycle increments the cycle counter and returns the new value
func (st *StateTracker) CompleteCycle() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cycle++
	return st.cycle
}

// CycleCount returns the number of completed cycles
func (st *StateTracker) CycleCount() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cycle
}

// Get returns the latest cycle for a sensor
func (st *StateTracker) Get(sensorID string) (CycleState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	c, ok := st.cycles[sensorID]
	if !ok {
		return CycleState{}, false
	}
	return *c, true
}

// Summaries returns the latest summary of every sensor, sorted by sensor ID
func (st *StateTracker) Summaries() []CycleSummary {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]CycleSummary, 0, len(st.cycles))
	for _, c := range st.cycles {
		out = append(out, c.Summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// HasCycles returns true once any cycle has been recorded
func (st *StateTracker) HasCycles() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.cycles) > 0
}
