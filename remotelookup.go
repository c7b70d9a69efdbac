package dnscore

import (
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// subscription records one (endpoint, nameserver) pair a remoteLookup has
// asked to be notified on, so it can unsubscribe from all of them on any
// terminal transition (spec.md §4.2 cleanup discipline, step 3).
type subscription struct {
	endpoint   *udpEndpoint
	nameserver net.IP
}

// remoteLookup is the network-driven Lookup variant of spec.md §4.2: it
// sends datagrams to upstream nameservers, retries across attempts and
// nameservers, promotes truncated UDP responses to TCP, and rewrites a
// hosts-shadowed NXDOMAIN into an empty answer.
type remoteLookup struct {
	baseLookup

	sched *Scheduler
	query *Query

	// attemptsUsed and last are touched only from execute/credits/timestamp,
	// which the scheduler only ever calls on a lookup it holds in scheduled
	// or in-flight under sched.mu (step's phases 3-4) — no extra lock needed.
	attemptsUsed int
	last         time.Time

	// connMu guards subs and conn, which are mutated both by the UDP read
	// path (promoting to TCP, unlocked — see udpendpoint.go's deliver) and
	// by cleanup, reached from the TCP goroutine's report/onTCPFailure
	// (also unlocked) as well as from Cancel and the timeout sweep (under
	// sched.mu). Those two lock domains never nest, so a lookup-local mutex
	// is enough without coupling to the scheduler's own lock.
	connMu sync.Mutex
	subs   []subscription
	conn   *tcpConnection
}

var _ lookup = (*remoteLookup)(nil)
var _ Operation = (*remoteLookup)(nil)

func newRemoteLookup(s *Scheduler, query *Query, h Handler) *remoteLookup {
	return &remoteLookup{
		baseLookup: baseLookup{handler: h},
		sched:      s,
		query:      query,
	}
}

func (l *remoteLookup) Name() string { return l.query.Name() }
func (l *remoteLookup) Type() uint16 { return l.query.Type() }

// credits reports how many datagrams are still allowed: attempts minus
// attempts already used.
func (l *remoteLookup) credits() int {
	c := l.sched.attempts - l.attemptsUsed
	if c < 0 {
		return 0
	}
	return c
}

func (l *remoteLookup) timestamp() time.Time { return l.last }

// nameserverFor picks the nameserver for attempt number k of a lookup
// with random id id, per spec.md §4.1's nameserver selection rule.
func nameserverFor(nameservers []net.IP, rotate bool, k int, id uint16) net.IP {
	n := len(nameservers)
	if n == 0 {
		return nil
	}
	if rotate {
		return nameservers[(k+int(id))%n]
	}
	return nameservers[k%n]
}

// execute sends one datagram to the next nameserver in rotation and
// subscribes for the answer. Per spec.md §4.2 this always returns true:
// a remote lookup is always moved to in-flight after an attempt.
func (l *remoteLookup) execute(now time.Time) bool {
	ns := nameserverFor(l.sched.nameservers, l.sched.rotate, l.attemptsUsed, l.query.ID())
	if ns != nil {
		if ep, err := l.sched.datagram(ns, l.query); err == nil {
			ep.subscribe(ns, l.query.ID(), l)
			l.connMu.Lock()
			l.subs = append(l.subs, subscription{endpoint: ep, nameserver: ns})
			l.connMu.Unlock()
			l.sched.metrics.sent.Add(1)
		} else {
			logger(l.query.ID(), l.query.Name(), l.query.Type()).WithError(err).Debug("failed to send datagram")
		}
	}
	l.attemptsUsed++
	l.last = now
	return true
}

// unsubscribe tears down every recorded (endpoint, nameserver) subscription.
func (l *remoteLookup) unsubscribe() {
	l.connMu.Lock()
	subs := l.subs
	l.subs = nil
	l.connMu.Unlock()
	for _, sub := range subs {
		sub.endpoint.unsubscribe(sub.nameserver, l.query.ID())
	}
}

// cleanup releases every resource this lookup holds: the TCP connection
// (if any) and all UDP subscriptions. Safe to call more than once, and
// safe to call concurrently with onUDPResponse's TCP promotion (connMu
// serializes both against subs/conn; whichever side sees the other's
// write closes or skips consistently).
func (l *remoteLookup) cleanup() {
	l.connMu.Lock()
	conn := l.conn
	l.conn = nil
	l.connMu.Unlock()
	if conn != nil {
		conn.close()
	}
	l.unsubscribe()
}

// report decides the terminal result for resp, applying the NXDOMAIN
// rewrite policy of spec.md §4.2, and schedules delivery.
func (l *remoteLookup) report(resp *Response) {
	h := l.takeHandler()
	if h == nil {
		return
	}
	l.cleanup()

	logger(l.query.ID(), l.Name(), l.Type()).WithField("rcode", rcodeString(resp.Rcode())).Debug("resolved")

	if resp.Rcode() == dns.RcodeNameError && l.sched.hosts.exists(resp.QuestionName()) {
		fake := &Response{msg: emptyAnswer(resp.msg)}
		l.sched.metrics.nxdomainRewritten.Add(1)
		l.pendingCall = func() { h.OnResolved(l, fake) }
	} else {
		l.pendingCall = func() { h.OnResolved(l, resp) }
	}
	l.sched.metrics.resolved.Add(1)
	l.sched.done(l)
}

// onUDPResponse is called by the scheduler's delivery phase for every
// datagram the subscription table matched to this lookup.
func (l *remoteLookup) onUDPResponse(from net.IP, resp *Response) {
	if l.terminal() {
		return
	}
	if !l.query.Matches(resp) {
		return
	}
	l.connMu.Lock()
	alreadyTCP := l.conn != nil
	l.connMu.Unlock()
	if alreadyTCP {
		// already committed to TCP, ignore further UDP chatter
		return
	}
	if !resp.Truncated() {
		l.report(resp)
		return
	}

	l.sched.metrics.truncated.Add(1)

	// Move out of in-flight before anything else: invariant 3 of spec.md
	// §3 ("a remote Lookup with a live TCP connection has no UDP
	// subscriptions [and is not subject to the timeout sweep]") requires
	// the timeout sweep to never see this lookup again while the TCP
	// exchange is pending, so it can neither re-send a UDP datagram nor
	// race onTCPResponse/onTCPFailure into markTimeout.
	l.sched.suspend(l)
	l.unsubscribe()

	conn := newTCPConnection(l.sched.clock, from, l.query, resp, l)
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
	// If Cancel/markTimeout raced in between suspend and the assignment
	// above, cleanup already ran and found conn nil; close it ourselves
	// so it isn't orphaned. close is idempotent, so a second close from a
	// cleanup that runs right after this check is harmless.
	if l.terminal() {
		conn.close()
	}

	l.sched.metrics.tcpFallback.Add(1)
}

// onTCPResponse is called by the TCP connection once it has a full answer.
func (l *remoteLookup) onTCPResponse(resp *Response) {
	if l.terminal() {
		return
	}
	if !l.query.Matches(resp) {
		return
	}
	l.report(resp)
}

// onTCPFailure is called when the TCP fallback could not be completed;
// the best-effort degradation is to surface the truncated UDP response
// that triggered the fallback in the first place.
func (l *remoteLookup) onTCPFailure(truncated *Response) {
	h := l.takeHandler()
	if h == nil {
		return
	}
	l.cleanup()
	l.pendingCall = func() { h.OnResolved(l, truncated) }
	l.sched.metrics.resolved.Add(1)
	l.sched.done(l)
}

// markTimeout is invoked by the sweep phase once credits are exhausted.
// It nulls the handler and prepares the onTimeout dispatch; the scheduler
// moves the lookup to the ready queue itself.
func (l *remoteLookup) markTimeout() {
	h := l.takeHandler()
	if h == nil {
		return
	}
	l.cleanup()
	l.pendingCall = func() { h.OnTimeout(l) }
	l.sched.metrics.timedOut.Add(1)
}

// Cancel implements Operation. It is synchronous: OnCancelled runs on the
// caller's goroutine before Cancel returns, and a second call is a no-op
// (spec.md §5, §8 property 6).
func (l *remoteLookup) Cancel() {
	l.sched.cancel(l)
}

// cancelInternal is called by the scheduler while holding its lock. It
// returns the handler to notify, or nil if the lookup was already
// terminal (idempotence of cancel).
func (l *remoteLookup) cancelInternal() Handler {
	h := l.takeHandler()
	if h == nil {
		return nil
	}
	l.cleanup()
	return h
}

