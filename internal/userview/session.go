package userview

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule sweeps idle sessions once a minute.
const DefaultSweepSchedule = "@every 1m"

// Factory builds the view for a newly mounted page.
type Factory func() *View

// Sessions keeps one View per browser session. A session's view is handed
// out under its own lock so that one session's actions run one at a time.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  Factory
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	sweeper  *cron.Cron
	stopOnce sync.Once
}

type session struct {
	mu       sync.Mutex
	view     *View
	lastSeen time.Time
}

// NewSessions returns a store that builds views with factory and forgets
// sessions idle for longer than ttl.
func NewSessions(factory Factory, ttl time.Duration, logger *slog.Logger) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		sessions: make(map[string]*session),
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Mount replaces the session's view with a fresh one and runs fn on it.
func (s *Sessions) Mount(id string, fn func(*View)) {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.view = s.factory()
	fn(sess.view)
}

// With runs fn on the session's view, creating the view if the session is
// unknown. It reports whether the session already existed.
func (s *Sessions) With(id string, fn func(*View)) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	s.mu.Unlock()

	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.view == nil {
		sess.view = s.factory()
	}
	fn(sess.view)
	return existed
}

// Has reports whether id names a live session.
func (s *Sessions) Has(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) get(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess
}

// Sweep drops sessions idle for longer than the ttl and returns how many
// were dropped.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dropped := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// StartSweeper sweeps expired sessions on the given cron schedule until
// Close. An empty schedule means DefaultSweepSchedule.
func (s *Sessions) StartSweeper(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if n := s.Sweep(); n > 0 {
			s.logger.Debug("Expired sessions dropped", "count", n, "remaining", s.Len())
		}
	}); err != nil {
		return fmt.Errorf("session sweep schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	if s.sweeper != nil {
		s.mu.Unlock()
		return fmt.Errorf("session sweeper already started")
	}
	s.sweeper = c
	s.mu.Unlock()

	c.Start()
	return nil
}

// Close stops the sweeper, waiting for a running sweep to finish.
func (s *Sessions) Close() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		c := s.sweeper
		s.mu.Unlock()
		if c != nil {
			<-c.Stop().Done()
		}
	})
	return nil
}
