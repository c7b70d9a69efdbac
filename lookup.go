package dnscore

import (
	"container/list"
	"sync"
	"time"
)

// baseLookup holds the bookkeeping shared by remoteLookup and localLookup:
// the queue position handle (spec.md §9's "queue position handle") and the
// single pendingCall closure that decouples "decide the terminal result"
// from "invoke the handler" (spec.md §4.2 cleanup discipline / §9's note
// on separating the null-handler convention from an explicit terminated
// state).
//
// handler is read and nulled from more goroutines than the scheduler's own
// lock reaches: a remote lookup's TCP fallback reports back from its own
// goroutine, unlocked (see scheduler.go's step comment), while Cancel and
// the timeout sweep take the handler under sched.mu. handlerMu is the
// narrow per-lookup lock that makes takeHandler/terminal atomic across
// those callers, so at most one of them ever wins the terminal transition.
type baseLookup struct {
	elem        *list.Element
	q           *queue
	handlerMu   sync.Mutex
	handler     Handler
	pendingCall func()
}

// lookup is the contract the scheduler drives generically, satisfied by
// both remoteLookup and localLookup. It mirrors original_source's Lookup
// base class: execute/credits/timestamp/markTimeout for the scheduler's
// five-phase step, plus the bookkeeping a queue needs for O(1) removal
// from an arbitrary spot (response arrival, cancel) rather than only from
// the front. element/setElement/queueRef/setQueueRef/terminal/dispatch are
// provided once by baseLookup; execute/credits/timestamp/markTimeout/
// cancelInternal are specific to each variant.
type lookup interface {
	// execute runs one step of the lookup and reports whether it should
	// be moved to the in-flight queue (true, remote lookups that sent a
	// datagram) or fall through to the ready queue (false, local lookups).
	execute(now time.Time) bool

	// credits returns the number of attempts still available.
	credits() int

	// timestamp is the time of the last send (remote) or +inf (local, so
	// it is never picked up by the timeout sweep).
	timestamp() time.Time

	// markTimeout is invoked by the sweep phase once credits are
	// exhausted without a matching response.
	markTimeout()

	// cancelInternal is called by the scheduler while holding its lock.
	// It returns the handler to notify, or nil if already terminal.
	cancelInternal() Handler

	element() *list.Element
	setElement(*list.Element)
	queueRef() *queue
	setQueueRef(*queue)
	terminal() bool
	dispatch()
}

func (b *baseLookup) element() *list.Element     { return b.elem }
func (b *baseLookup) setElement(e *list.Element) { b.elem = e }
func (b *baseLookup) queueRef() *queue           { return b.q }
func (b *baseLookup) setQueueRef(q *queue)       { b.q = q }
func (b *baseLookup) terminal() bool {
	b.handlerMu.Lock()
	defer b.handlerMu.Unlock()
	return b.handler == nil
}

// takeHandler nulls the handler reference and returns the one that was
// there, or nil if this lookup already reported a terminal result.
// Nulling the handler is both the "already terminal" marker and the
// guard against double-reporting (spec.md §3 invariant 6) — handlerMu
// makes the check-and-null atomic no matter which goroutine calls it.
func (b *baseLookup) takeHandler() Handler {
	b.handlerMu.Lock()
	defer b.handlerMu.Unlock()
	h := b.handler
	b.handler = nil
	return h
}

func (b *baseLookup) dispatch() {
	if b.pendingCall == nil {
		return
	}
	call := b.pendingCall
	b.pendingCall = nil
	call()
}

func clockInfinite() time.Time { return time.Unix(1<<62, 0) }
