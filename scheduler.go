package dnscore

import (
	"net"
	"sync"
	"time"
)

// Scheduler holds the three queues and the single pacing timer described in
// spec.md §4.1. It is the mutex-guarded translation of original_source's
// single-threaded cooperative core.Loop: where the original relied on every
// transition running on one thread with no locks, this implementation runs
// callers, UDP read goroutines, and TCP goroutines concurrently and
// serialises them behind sched.mu instead — the same translation the
// teacher library makes in failback.go, where FailBack.mu guards shared
// state mutated from multiple goroutines while callbacks themselves run
// with the lock released.
type Scheduler struct {
	mu sync.Mutex

	scheduled *queue
	inflight  *queue
	ready     *queue

	capacity   int
	attempts   int
	interval   time.Duration
	timeout    time.Duration
	rotate     bool
	maxCalls   int
	bufferSize int
	port       int // 53 in production; overridden by tests against a loopback mock

	nameservers []net.IP
	hosts       *HostsTable
	clock       Clock

	ipv4 *udpEndpoint
	ipv6 *udpEndpoint

	timer   *time.Timer
	timerMu sync.Mutex

	metrics *contextMetrics
	closed  bool
}

// newScheduler builds a Scheduler. It does not start anything: the pacing
// timer is armed lazily, the first time a lookup is scheduled.
func newScheduler(id string, nameservers []net.IP, hosts *HostsTable, clock Clock) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	s := &Scheduler{
		scheduled:   &queue{},
		inflight:    &queue{},
		ready:       &queue{},
		capacity:    10,
		attempts:    2,
		interval:    time.Second,
		timeout:     time.Second,
		maxCalls:    8,
		rotate:      false,
		port:        53,
		nameservers: nameservers,
		hosts:       hosts,
		clock:       clock,
		metrics:     newContextMetrics(id),
	}
	s.ipv4 = newUDPEndpoint("udp4", s)
	s.ipv6 = newUDPEndpoint("udp6", s)
	return s
}

// submit pushes a freshly constructed lookup onto the scheduled queue and
// arms the timer to fire immediately — spec.md §4.1's "pushes to scheduled,
// rearms timer to fire immediately."
func (s *Scheduler) submit(l lookup) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.scheduled.push(l)
	s.mu.Unlock()
	s.armNow()
}

// datagram sends query to ns over the endpoint matching its address family.
func (s *Scheduler) datagram(ns net.IP, query *Query) (*udpEndpoint, error) {
	ep := s.ipv4
	if ns.To4() == nil {
		ep = s.ipv6
	}
	if err := ep.send(ns, query); err != nil {
		return nil, err
	}
	return ep, nil
}

// done moves l to the ready queue regardless of which queue currently holds
// it, mirroring original_source's Core::done. Called by a lookup once it has
// decided its terminal pendingCall.
func (s *Scheduler) done(l lookup) {
	s.mu.Lock()
	if q := l.queueRef(); q != nil {
		q.remove(l)
	}
	s.ready.push(l)
	s.mu.Unlock()
	s.armNow()
}

// cancel implements Operation.Cancel: remove l from whatever queue holds it,
// ask it to release its resources, and deliver OnCancelled synchronously
// before returning (spec.md §5).
func (s *Scheduler) cancel(l lookup) {
	s.mu.Lock()
	if q := l.queueRef(); q != nil {
		q.remove(l)
	}
	h := l.cancelInternal()
	s.mu.Unlock()

	if h == nil {
		return
	}
	s.metrics.cancelled.Add(1)
	h.OnCancelled(l.(Operation))
}

// schedule is used by the in-flight sweep to push a lookup back for another
// attempt.
func (s *Scheduler) schedule(l lookup) {
	s.scheduled.push(l)
}

// suspend removes l from whichever queue currently holds it (always
// in-flight in practice: it is called exactly once, when a remoteLookup
// promotes a truncated UDP response to TCP) and leaves it in no queue at
// all. A TCP-pending lookup is invisible to phase 3 (nothing to execute)
// and phase 4's timeout sweep (nothing to pop and re-send or time out)
// until its own goroutine calls done — mirroring original_source's single
// thread never running the timeout sweep concurrently with a pending TCP
// exchange for the same lookup.
func (s *Scheduler) suspend(l lookup) {
	s.mu.Lock()
	if q := l.queueRef(); q != nil {
		q.remove(l)
	}
	s.mu.Unlock()
}

// armNow arms the pacing timer to fire as soon as possible, starting the
// next step.
func (s *Scheduler) armNow() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer == nil {
		s.timer = time.AfterFunc(0, s.step)
		return
	}
	s.timer.Reset(0)
}

// armAfter arms the pacing timer to fire after d, replacing any pending
// deadline. d of zero or less fires immediately.
func (s *Scheduler) armAfter(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer == nil {
		s.timer = time.AfterFunc(d, s.step)
		return
	}
	s.timer.Reset(d)
}

// disarm stops the pacing timer. Invariant 7 of spec.md §3: when all three
// queues are empty, the timer is disarmed.
func (s *Scheduler) disarm() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// step is the timer callback. It runs the five phases of spec.md §4.1 in
// order. Phase 1 and phase 2 run with s.mu released: phase 1's deliveries
// may themselves call back into done (a lookup reporting a terminal
// result), and phase 2's dispatches are arbitrary user code, either of
// which may call Cancel or submit a new query from the same goroutine.
// Holding the lock across either would deadlock against the mutex both
// done and submit take. Only the queue bookkeeping in phases 3-5 runs
// locked.
func (s *Scheduler) step() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	s.mu.Unlock()

	budget := s.maxCalls

	// Phase 1: deliver buffered inbound datagrams. Each delivery may
	// terminate a lookup, which calls done (locks internally).
	budget -= s.ipv4.deliver(budget)
	if budget > 0 {
		budget -= s.ipv6.deliver(budget)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	n := s.ready.len()
	if n > budget {
		n = budget
	}
	if n < 0 {
		n = 0
	}
	batch := s.ready.popBatch(n)
	s.mu.Unlock()

	// Phase 2: flush ready callbacks with the lock released.
	for _, l := range batch {
		l.dispatch()
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
	}

	s.mu.Lock()

	// Phase 3: launch scheduled lookups up to capacity.
	for s.inflight.len() < s.capacity && !s.scheduled.empty() {
		l := s.scheduled.pop()
		if l.execute(now) {
			s.inflight.push(l)
		} else {
			s.ready.push(l)
		}
	}

	// Phase 4: sweep in-flight lookups whose timeout has elapsed.
	for {
		front := s.inflight.front()
		if front == nil {
			break
		}
		if front.timestamp().Add(s.timeout).After(now) {
			break
		}
		l := s.inflight.pop()
		if l.credits() > 0 {
			s.schedule(l)
		} else {
			l.markTimeout()
			s.ready.push(l)
		}
	}

	// Phase 5: rearm the timer.
	s.metrics.inFlight.Set(int64(s.inflight.len()))
	var (
		arm    bool
		delay  time.Duration
		disarm bool
	)
	switch {
	case !s.ready.empty():
		arm, delay = true, 0
	case !s.inflight.empty():
		deadline := s.inflight.front().timestamp().Add(s.timeout)
		d := deadline.Sub(now)
		arm, delay = true, d
	case !s.scheduled.empty():
		arm, delay = true, 0
	default:
		disarm = true
	}
	s.mu.Unlock()

	if disarm {
		s.disarm()
	} else if arm {
		s.armAfter(delay)
	}
}

// close disarms the timer and cancels every lookup held in a queue,
// delivering OnCancelled to each one that has not already decided its
// terminal result. Lookups in the ready queue and TCP-pending lookups (in
// no queue) receive no callback. Safe to call more than once.
func (s *Scheduler) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var pending []lookup
	for _, q := range []*queue{s.scheduled, s.inflight, s.ready} {
		for q.len() > 0 {
			pending = append(pending, q.pop())
		}
	}
	s.mu.Unlock()

	s.disarm()
	s.ipv4.close()
	s.ipv6.close()

	for _, l := range pending {
		if h := l.cancelInternal(); h != nil {
			s.metrics.cancelled.Add(1)
			h.OnCancelled(l.(Operation))
		}
	}
}
