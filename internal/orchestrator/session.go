package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/DiabetView/internal/observability"
	"github.com/Skufu/DiabetView/internal/projection"
)

// Projector never fails; aiclient.Projector satisfies it.
type Projector interface {
	Project(ctx context.Context, profile projection.PatientProfile, intervention projection.Intervention) projection.Projection
}

// Session drives a Machine with a real timer. Responses race freely; the
// token check in Resolve decides which one is shown.
type Session struct {
	id        string
	projector Projector
	logger    *zap.Logger
	metrics   *observability.Metrics
	// ctx outlives Teardown; a call already on the wire is not aborted.
	ctx context.Context
	now func() time.Time

	mu      sync.Mutex
	machine *Machine
	timer   *time.Timer
	subs    map[chan Snapshot]struct{}
	// lastActive is the last edit, read or subscription change.
	lastActive time.Time
}

func NewSession(ctx context.Context, id string, projector Projector, debounce time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Session {
	s := &Session{
		id:        id,
		projector: projector,
		logger:    logger.With(zap.String("session_id", id)),
		metrics:   metrics,
		ctx:       ctx,
		now:       time.Now,
		machine:   NewMachine(debounce),
		subs:      make(map[chan Snapshot]struct{}),
	}
	s.lastActive = s.now()
	return s
}

func (s *Session) ID() string { return s.id }

// Edit records new inputs and restarts the debounce window.
func (s *Session) Edit(in Inputs) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.lastActive = now
	deadline := s.machine.Edit(in, now)
	if deadline.IsZero() {
		return s.machine.Snapshot()
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(deadline.Sub(now), s.fire)

	snap := s.machine.Snapshot()
	s.publish(snap)
	return snap
}

// fire runs on the timer goroutine. A callback whose deadline was replaced
// by a later Edit finds Fire refusing and returns.
func (s *Session) fire() {
	s.mu.Lock()
	req, ok := s.machine.Fire(s.now())
	if !ok {
		s.mu.Unlock()
		return
	}
	s.metrics.RequestFired()
	s.publish(s.machine.Snapshot())
	s.mu.Unlock()

	s.logger.Debug("projection requested", zap.Uint64("token", uint64(req.Token)))
	result := s.projector.Project(s.ctx, req.Inputs.Profile, req.Inputs.Intervention)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.machine.Resolve(req.Token, result) {
		s.metrics.StaleResponse()
		s.logger.Debug("stale projection discarded", zap.Uint64("token", uint64(req.Token)))
		return
	}
	s.publish(s.machine.Snapshot())
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	return s.machine.Snapshot()
}

// idleSince reports when the session was last touched. A session with a
// subscriber or an armed or in-flight request is never idle.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case len(s.subs) > 0:
		return time.Time{}, false
	case s.machine.State() == StateArmed, s.machine.State() == StateInFlight:
		return time.Time{}, false
	}
	return s.lastActive, true
}

// Subscribe returns a channel that always holds the most recent snapshot.
// Slow readers skip intermediate states. The channel is closed on Teardown
// or when cancel is called.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	ch <- s.machine.Snapshot()
	if s.machine.Closed() {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.lastActive = s.now()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			s.lastActive = s.now()
			delete(s.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Teardown stops an armed timer and marks every outstanding request stale.
// It is idempotent and reports whether a pending request was cancelled.
func (s *Session) Teardown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.Closed() {
		return false
	}
	wasArmed := s.machine.Teardown()
	if s.timer != nil {
		s.timer.Stop()
	}

	s.publish(s.machine.Snapshot())
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}

	s.logger.Debug("session torn down", zap.Bool("cancelled_pending", wasArmed))
	return wasArmed
}

// publish must be called with mu held.
func (s *Session) publish(snap Snapshot) {
	for ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
