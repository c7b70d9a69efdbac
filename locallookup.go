package dnscore

import (
	"net"
	"time"

	"github.com/miekg/dns"
)

// localLookup is the hosts-file Lookup variant of spec.md §4.3: a single
// synchronous resolution against the hosts table, deferred to the next
// scheduler tick so its delivery semantics match a remote lookup's
// (always dispatched from the scheduler's batched flush phase, never
// from the caller's stack).
//
// Per spec.md §4.1, only query_reverse may construct one of these: a
// forward query always constructs a remote Lookup, and a hosts-known
// forward name is shadowed only by the NXDOMAIN rewrite in
// remoteLookup.report, never by bypassing the network outright.
type localLookup struct {
	baseLookup

	sched *Scheduler
	query *Query
	addr  net.IP

	ready bool
}

var _ lookup = (*localLookup)(nil)
var _ Operation = (*localLookup)(nil)

func newLocalLookupReverse(s *Scheduler, query *Query, addr net.IP, h Handler) *localLookup {
	return &localLookup{baseLookup: baseLookup{handler: h}, sched: s, query: query, addr: addr}
}

func (l *localLookup) Name() string { return l.query.Name() }
func (l *localLookup) Type() uint16 { return dns.TypePTR }

// credits is always 1: a local lookup makes exactly one synchronous
// attempt and never sends a datagram.
func (l *localLookup) credits() int { return 1 }

// timestamp is +infinity until executed, so the timeout sweep (which only
// ever inspects the in-flight queue) can never touch a local lookup —
// local lookups never enter in-flight in the first place, but the
// infinite timestamp documents the invariant defensively.
func (l *localLookup) timestamp() time.Time {
	if l.ready {
		return l.sched.clock.Now()
	}
	return clockInfinite()
}

// execute resolves addr against the hosts table and marks the lookup
// ready. It always returns false: a local lookup never sends a datagram
// and is never rescheduled (spec.md §4.3).
func (l *localLookup) execute(now time.Time) bool {
	if l.ready {
		return false
	}
	l.ready = true

	h := l.takeHandler()
	if h == nil {
		return false
	}

	names := l.sched.hosts.reverseLookup(l.addr)
	resp := &Response{msg: ptrAnswer(l.query.msg, names)}
	l.pendingCall = func() { h.OnResolved(l, resp) }
	return false
}

// Cancel implements Operation. Idempotent, synchronous.
func (l *localLookup) Cancel() {
	l.sched.cancel(l)
}

func (l *localLookup) cancelInternal() Handler {
	return l.takeHandler()
}

// markTimeout is unreachable for local lookups (they never enter
// in-flight) but is required to satisfy the lookup interface uniformly.
func (l *localLookup) markTimeout() {}
