// Package orchestrator keeps the projection shown to a user consistent with
// the inputs they last settled on. Edits are debounced, each fired request
// carries a token, and only the response for the newest token is published.
package orchestrator

import (
	"fmt"
	"time"

	"github.com/Skufu/DiabetView/internal/projection"
)

// DefaultDebounce is the quiet window after the last edit before a request
// is issued.
const DefaultDebounce = 800 * time.Millisecond

// Token identifies one fired request. Tokens increase monotonically per
// machine; zero means none was ever minted.
type Token uint64

type Inputs struct {
	Profile      projection.PatientProfile `json:"profile"`
	Intervention projection.Intervention   `json:"intervention"`
}

type State int

const (
	StateIdle State = iota
	StateArmed
	StateInFlight
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateInFlight:
		return "in_flight"
	case StateSettled:
		return "settled"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateIdle, StateArmed, StateInFlight, StateSettled} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Request is what a timer fire hands to the projector.
type Request struct {
	Token  Token
	Inputs Inputs
}

type Snapshot struct {
	Result    *projection.Projection `json:"simulationResult"`
	IsLoading bool                   `json:"isLoading"`
	State     State                  `json:"state"`
	Token     Token                  `json:"token"`
	Closed    bool                   `json:"closed,omitempty"`
}

// Machine is the timer-free core of the orchestrator. Callers own the clock
// and the timer; the machine only records transitions. It is not safe for
// concurrent use.
type Machine struct {
	debounce time.Duration

	latest   Inputs
	armed    bool
	deadline time.Time

	token    Token
	inFlight bool
	result   *projection.Projection
	closed   bool
}

func NewMachine(debounce time.Duration) *Machine {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Machine{debounce: debounce}
}

// Edit records new inputs and (re)arms the debounce window. It returns the
// deadline at which Fire should be called, or the zero time after Teardown.
func (m *Machine) Edit(in Inputs, now time.Time) time.Time {
	if m.closed {
		return time.Time{}
	}
	m.latest = in
	m.armed = true
	m.deadline = now.Add(m.debounce)
	return m.deadline
}

// Fire mints a token and captures the inputs if the window has elapsed. A
// call for a deadline that was superseded by a later Edit reports false.
func (m *Machine) Fire(now time.Time) (Request, bool) {
	if m.closed || !m.armed || now.Before(m.deadline) {
		return Request{}, false
	}
	m.armed = false
	m.token++
	m.inFlight = true
	return Request{Token: m.token, Inputs: m.latest}, true
}

// Resolve accepts a response only when it answers the newest token.
func (m *Machine) Resolve(token Token, p projection.Projection) bool {
	if m.closed || !m.inFlight || token != m.token {
		return false
	}
	m.inFlight = false
	m.result = &p
	return true
}

// Teardown clears an armed timer and makes every outstanding token stale.
// It reports whether a pending request was cancelled.
func (m *Machine) Teardown() bool {
	if m.closed {
		return false
	}
	wasArmed := m.armed
	m.armed = false
	m.inFlight = false
	m.closed = true
	return wasArmed
}

func (m *Machine) State() State {
	switch {
	case m.armed:
		return StateArmed
	case m.inFlight:
		return StateInFlight
	case m.result != nil:
		return StateSettled
	default:
		return StateIdle
	}
}

func (m *Machine) Deadline() (time.Time, bool) {
	return m.deadline, m.armed
}

func (m *Machine) Closed() bool { return m.closed }

func (m *Machine) Snapshot() Snapshot {
	snap := Snapshot{
		IsLoading: m.inFlight,
		State:     m.State(),
		Token:     m.token,
		Closed:    m.closed,
	}
	if m.result != nil {
		r := *m.result
		snap.Result = &r
	}
	return snap
}
