package localize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTracker(t *testing.T) {
	st := NewStateTracker()
	assert.False(t, st.HasCycles())
	assert.Equal(t, uint64(0), st.CycleCount())

	_, ok := st.Get("front")
	assert.False(t, ok)

	scored := []ScoredPose{{Pose: Pose{X: 1}, Likelihood: Informative(0.3)}}
	st.Record(CycleSummary{SensorID: "left", Poses: 1}, scored)
	st.Record(CycleSummary{SensorID: "front", Poses: 1}, scored)
	assert.Equal(t, uint64(1), st.CompleteCycle())
	assert.Equal(t, uint64(1), st.CycleCount())
	assert.True(t, st.HasCycles())

	state, ok := st.Get("front")
	require.True(t, ok)
	assert.Equal(t, "front", state.Summary.SensorID)
	assert.Equal(t, scored, state.Scored)

	summaries := st.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "front", summaries[0].SensorID)
	assert.Equal(t, "left", summaries[1].SensorID)

	st.Record(CycleSummary{SensorID: "front", Poses: 7}, nil)
	state, _ = st.Get("front")
	assert.Equal(t, 7, state.Summary.Poses)
	assert.Len(t, st.Summaries(), 2)
}
