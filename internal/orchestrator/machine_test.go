package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/DiabetView/internal/projection"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func inputsWithWeight(w float64) Inputs {
	return Inputs{
		Profile: projection.PatientProfile{
			Age: 55, Weight: w, Height: 175, FastingGlucose: 8.5, HbA1c: 7.8,
			SystolicBP: 145, IsSmoker: true, DiabetesDurationYears: 5, Gender: projection.GenderMale,
		},
		Intervention: projection.Intervention{TargetWeight: 85, TargetGlucose: 6.0, QuitSmoking: true},
	}
}

func projectionFor(in Inputs) projection.Projection {
	return projection.Projection{
		SimulationResult: projection.Project(in.Profile, in.Intervention),
		Source:           projection.SourceHeuristic,
	}
}

func TestMachine_StartsIdle(t *testing.T) {
	m := NewMachine(0)
	snap := m.Snapshot()

	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.Result)
	assert.Equal(t, Token(0), snap.Token)
	assert.Equal(t, DefaultDebounce, m.debounce)
}

func TestMachine_DebounceCollapsesBurst(t *testing.T) {
	m := NewMachine(800 * time.Millisecond)

	var deadlines []time.Time
	for i := 0; i < 5; i++ {
		now := t0.Add(time.Duration(i) * 150 * time.Millisecond)
		deadlines = append(deadlines, m.Edit(inputsWithWeight(90+float64(i)), now))
	}
	assert.Equal(t, StateArmed, m.State())

	// Timers armed for superseded edits must not fire a request.
	for _, d := range deadlines[:4] {
		_, ok := m.Fire(d)
		assert.False(t, ok)
	}

	last := deadlines[4]
	assert.Equal(t, t0.Add(600*time.Millisecond+800*time.Millisecond), last)

	req, ok := m.Fire(last)
	require.True(t, ok)
	assert.Equal(t, Token(1), req.Token)
	assert.Equal(t, 94.0, req.Inputs.Profile.Weight)

	_, ok = m.Fire(last.Add(time.Second))
	assert.False(t, ok, "one window fires exactly once")
}

func TestMachine_ResolveSettles(t *testing.T) {
	m := NewMachine(time.Second)
	in := inputsWithWeight(95)

	deadline := m.Edit(in, t0)
	req, ok := m.Fire(deadline)
	require.True(t, ok)

	snap := m.Snapshot()
	assert.Equal(t, StateInFlight, snap.State)
	assert.True(t, snap.IsLoading)

	require.True(t, m.Resolve(req.Token, projectionFor(in)))
	snap = m.Snapshot()
	assert.Equal(t, StateSettled, snap.State)
	assert.False(t, snap.IsLoading)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 65.0, snap.Result.Current.VascularHealth)

	assert.False(t, m.Resolve(req.Token, projectionFor(in)), "duplicate response is ignored")
}

func TestMachine_LateResponseForOlderTokenIsDiscarded(t *testing.T) {
	m := NewMachine(time.Second)
	first, second := inputsWithWeight(95), inputsWithWeight(80)

	req1, ok := m.Fire(m.Edit(first, t0))
	require.True(t, ok)
	req2, ok := m.Fire(m.Edit(second, t0.Add(2*time.Second)))
	require.True(t, ok)
	require.Less(t, req1.Token, req2.Token)

	require.True(t, m.Resolve(req2.Token, projectionFor(second)))
	assert.False(t, m.Resolve(req1.Token, projectionFor(first)))

	snap := m.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, projectionFor(second), *snap.Result)
}

func TestMachine_EarlyResponseForOlderTokenIsDiscarded(t *testing.T) {
	m := NewMachine(time.Second)
	first, second := inputsWithWeight(95), inputsWithWeight(80)

	req1, _ := m.Fire(m.Edit(first, t0))
	req2, _ := m.Fire(m.Edit(second, t0.Add(2*time.Second)))

	assert.False(t, m.Resolve(req1.Token, projectionFor(first)))
	assert.True(t, m.Snapshot().IsLoading)

	require.True(t, m.Resolve(req2.Token, projectionFor(second)))
	assert.Equal(t, projectionFor(second), *m.Snapshot().Result)
}

func TestMachine_EditWhileInFlightReportsArmed(t *testing.T) {
	m := NewMachine(time.Second)

	_, ok := m.Fire(m.Edit(inputsWithWeight(95), t0))
	require.True(t, ok)
	m.Edit(inputsWithWeight(90), t0.Add(1500*time.Millisecond))

	snap := m.Snapshot()
	assert.Equal(t, StateArmed, snap.State)
	assert.True(t, snap.IsLoading)

	deadline, armed := m.Deadline()
	assert.True(t, armed)
	assert.Equal(t, t0.Add(2500*time.Millisecond), deadline)
}

func TestMachine_TeardownWhileArmed(t *testing.T) {
	m := NewMachine(time.Second)
	deadline := m.Edit(inputsWithWeight(95), t0)

	assert.True(t, m.Teardown())
	_, ok := m.Fire(deadline)
	assert.False(t, ok, "no request after teardown")
	assert.True(t, m.Edit(inputsWithWeight(90), t0).IsZero())
	assert.False(t, m.Teardown(), "teardown is idempotent")
	assert.True(t, m.Snapshot().Closed)
}

func TestMachine_TeardownWhileInFlight(t *testing.T) {
	m := NewMachine(time.Second)
	in := inputsWithWeight(95)
	req, ok := m.Fire(m.Edit(in, t0))
	require.True(t, ok)

	assert.False(t, m.Teardown())
	assert.False(t, m.Resolve(req.Token, projectionFor(in)))

	snap := m.Snapshot()
	assert.Nil(t, snap.Result)
	assert.False(t, snap.IsLoading)
}

func TestState_TextRoundTrip(t *testing.T) {
	for state, want := range map[State]string{
		StateIdle:     "idle",
		StateArmed:    "armed",
		StateInFlight: "in_flight",
		StateSettled:  "settled",
	} {
		raw, err := state.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(raw))

		var back State
		require.NoError(t, back.UnmarshalText(raw))
		assert.Equal(t, state, back)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("sleeping")))
}
