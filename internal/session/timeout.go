package session

import (
	"sync"
	"time"
)

// TimeoutSupervisor enforces a ceiling from session start to readiness.
// Arm schedules a one-shot expiry; Disarm cancels it idempotently. A
// disarmed timer never fires its callback, even if the underlying timer
// already went off, so natural readiness racing the deadline cannot
// double-clean.
type TimeoutSupervisor struct {
	deadline time.Duration

	mu    sync.Mutex
	gen   uint64
	armed map[string]*armedTimeout
}

type armedTimeout struct {
	timer *time.Timer
	gen   uint64
}

// NewTimeoutSupervisor creates a supervisor with the given deadline.
func NewTimeoutSupervisor(deadline time.Duration) *TimeoutSupervisor {
	return &TimeoutSupervisor{
		deadline: deadline,
		armed:    make(map[string]*armedTimeout),
	}
}

// Arm schedules onExpire for the tenant. Re-arming replaces any pending
// expiry.
func (s *TimeoutSupervisor) Arm(tenantID string, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.armed[tenantID]; ok {
		prev.timer.Stop()
	}

	s.gen++
	gen := s.gen
	at := &armedTimeout{gen: gen}
	at.timer = time.AfterFunc(s.deadline, func() {
		s.mu.Lock()
		cur, ok := s.armed[tenantID]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.armed, tenantID)
		s.mu.Unlock()
		onExpire()
	})
	s.armed[tenantID] = at
}

// Disarm cancels the tenant's pending expiry. No-op if already fired or
// never armed.
func (s *TimeoutSupervisor) Disarm(tenantID string) {
	s.mu.Lock()
	if at, ok := s.armed[tenantID]; ok {
		at.timer.Stop()
		delete(s.armed, tenantID)
	}
	s.mu.Unlock()
}
