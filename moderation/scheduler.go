package moderation

import (
	"log"
	"sync"
	"time"
)

// Scheduler wake intervals are clamped to this range: never sooner than a
// millisecond, never later than an hour, so the timer wakes at most hourly
// and re-evaluates against the store on each wake.
const (
	minArmInterval = time.Millisecond
	maxArmInterval = time.Hour
)

type schedulerState int

const (
	stateIdle schedulerState = iota
	stateArmed
	stateFiring
)

// Expirer is the slice of the ledger the scheduler drives. Satisfied by
// Ledger.
type Expirer interface {
	AutoRescindExpired() error
	EarliestExpiry() (*time.Time, error)
}

// RescindScheduler expires timed infractions on a single self-rescheduling
// timer. At most one pass is ever in flight: the timer is one-shot and only
// the end of a pass re-arms it. The next deadline is always recomputed from
// the store, not from in-memory bookkeeping, so it survives restarts.
type RescindScheduler struct {
	ledger Expirer

	mu       sync.Mutex
	state    schedulerState
	deadline time.Time
	timer    *time.Timer
	// pending holds an expiry notified while a pass was running, in case
	// the pass queried the store before that infraction landed.
	pending *time.Time
	stopped bool
	wg      sync.WaitGroup
}

// NewRescindScheduler builds a scheduler. It stays Idle until notified or
// fired.
func NewRescindScheduler(ledger Expirer) *RescindScheduler {
	return &RescindScheduler{ledger: ledger}
}

func clampInterval(d time.Duration) time.Duration {
	if d < minArmInterval {
		return minArmInterval
	}
	if d > maxArmInterval {
		return maxArmInterval
	}
	return d
}

// Notify arms the timer for a newly created timed infraction when the
// scheduler is unarmed or the new expiry beats the armed deadline.
func (s *RescindScheduler) Notify(expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	switch s.state {
	case stateFiring:
		if s.pending == nil || expiry.Before(*s.pending) {
			e := expiry
			s.pending = &e
		}
	case stateArmed:
		if expiry.Before(s.deadline) {
			s.armLocked(expiry)
		}
	default:
		s.armLocked(expiry)
	}
}

// FireNow forces an immediate pass. Invoked on the first gateway ready
// signal to catch up on expirations missed while offline.
func (s *RescindScheduler) FireNow() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	go s.fire()
}

// Stop halts the timer. An in-flight pass is allowed to finish.
func (s *RescindScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// armLocked re-arms the one-shot timer. Callers hold s.mu.
func (s *RescindScheduler) armLocked(expiry time.Time) {
	interval := clampInterval(time.Until(expiry))
	s.deadline = time.Now().Add(interval)
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(interval, s.fire)
	s.state = stateArmed
}

// fire runs one rescind pass and re-arms from the store's true earliest
// remaining expiry, or goes Idle when none remains.
func (s *RescindScheduler) fire() {
	s.mu.Lock()
	if s.stopped || s.state == stateFiring {
		s.mu.Unlock()
		return
	}
	s.state = stateFiring
	s.pending = nil
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if err := s.ledger.AutoRescindExpired(); err != nil {
		log.Printf("Auto-rescind pass failed: %v", err)
	}

	next, err := s.ledger.EarliestExpiry()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.state = stateIdle
		return
	}
	if err != nil {
		// The store could not answer; retry at the outer clamp rather
		// than going dark until the next creation.
		log.Printf("Failed to query earliest infraction expiry: %v", err)
		s.armLocked(time.Now().Add(maxArmInterval))
		return
	}
	if s.pending != nil && (next == nil || s.pending.Before(*next)) {
		next = s.pending
	}
	s.pending = nil
	if next == nil {
		s.state = stateIdle
		return
	}
	s.armLocked(*next)
}
