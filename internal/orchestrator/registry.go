package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skufu/DiabetView/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry owns the open sessions of the process.
type Registry struct {
	ctx       context.Context
	projector Projector
	debounce  time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
	stop     chan struct{}
}

func NewRegistry(projector Projector, debounce time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		ctx:       context.Background(),
		projector: projector,
		debounce:  debounce,
		logger:    logger,
		metrics:   metrics,
		sessions:  make(map[string]*Session),
	}
}

func (r *Registry) Create() *Session {
	s := NewSession(r.ctx, uuid.NewString(), r.projector, r.debounce, r.logger, r.metrics)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	r.metrics.SessionOpened()
	r.logger.Debug("session opened", zap.String("session_id", s.ID()))
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete tears the session down and forgets it.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Teardown()
	r.metrics.SessionClosed()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ExpireIdle starts a janitor that tears down sessions nobody has edited,
// read or watched for ttl. Calling it again is a no-op; Close stops it.
func (r *Registry) ExpireIdle(ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(max(ttl/2, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				r.sweep(now, ttl)
			}
		}
	}()
}

// sweep removes every session idle for at least ttl as of now and reports
// how many it tore down.
func (r *Registry) sweep(now time.Time, ttl time.Duration) int {
	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if since, idle := s.idleSince(); idle && now.Sub(since) >= ttl {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Teardown()
		r.metrics.SessionClosed()
	}
	if len(expired) > 0 {
		r.logger.Info("idle sessions expired", zap.Int("count", len(expired)), zap.Duration("ttl", ttl))
	}
	return len(expired)
}

// Close tears down every session, used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Teardown()
		r.metrics.SessionClosed()
	}
	r.logger.Info("sessions closed", zap.Int("count", len(sessions)))
}
