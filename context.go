package dnscore

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"

	"github.com/asyncdns/dnscore/hostsfile"
)

// ContextOptions configures a new Context. Grounded on the teacher
// library's embedded-options-struct convention (CacheOptions, FailBack's
// options, etc): an options value is passed once at construction, and the
// runtime-mutable subset is also exposed as Set* methods on Context itself
// per spec.md §6.
type ContextOptions struct {
	// Nameservers is the ordered list of upstream resolvers to query. At
	// least one is required.
	Nameservers []net.IP

	// HostsRecords seeds the hosts table. Loading /etc/hosts itself is the
	// caller's job (see the hostsfile package); Context only consumes the
	// parsed records.
	HostsRecords []hostsfile.Record

	// Capacity is the maximum number of concurrent in-flight remote
	// lookups. Zero selects the default of 10.
	Capacity int

	// Attempts is the maximum number of datagram sends per lookup. Zero
	// selects the default of 2.
	Attempts int

	// Interval is kept for configuration-surface compatibility (spec.md
	// §9: the step function currently consults only Timeout when deciding
	// retry cadence). Zero selects the default of one second.
	Interval time.Duration

	// Timeout is how long the scheduler waits after the last attempt
	// before declaring a lookup timed out, and also the retry cadence
	// between attempts (see Interval). Zero selects the default of one
	// second.
	Timeout time.Duration

	// Rotate distributes the first-attempt nameserver choice across the
	// nameserver list instead of always starting from the front.
	Rotate bool

	// BufferSize sets SO_SNDBUF/SO_RCVBUF on sockets opened after this
	// value is set. Zero leaves the OS default.
	BufferSize int

	// Clock lets tests inject a deterministic time source. Nil selects
	// the system clock.
	Clock Clock
}

var contextSeq atomic.Uint64

// Context is the public entry point: a Scheduler plus the metrics
// namespace and hosts table it needs, matching spec.md §2's "Context
// object wrapping Scheduler with user-facing query/query_reverse methods
// and runtime knobs."
type Context struct {
	sched *Scheduler
	bits  Bits
}

// New builds a Context. It returns ErrNoNameservers if opt.Nameservers is
// empty — a stub resolver with nowhere to forward queries cannot make
// progress (spec.md §7: construction errors are fatal).
func New(opt ContextOptions) (*Context, error) {
	if len(opt.Nameservers) == 0 {
		return nil, ErrNoNameservers
	}

	id := contextID()
	hosts := emptyHostsTable()
	if len(opt.HostsRecords) > 0 {
		hosts = NewHostsTable(opt.HostsRecords)
	}

	s := newScheduler(id, opt.Nameservers, hosts, opt.Clock)
	if opt.Capacity > 0 {
		s.capacity = opt.Capacity
	}
	if opt.Attempts > 0 {
		s.attempts = opt.Attempts
	}
	if opt.Interval > 0 {
		s.interval = opt.Interval
	}
	if opt.Timeout > 0 {
		s.timeout = opt.Timeout
	}
	s.rotate = opt.Rotate
	s.bufferSize = opt.BufferSize

	return &Context{sched: s, bits: DefaultBits}, nil
}

func contextID() string {
	n := contextSeq.Add(1)
	return "ctx" + strconv.FormatUint(n, 10)
}

// Query submits a forward lookup for name/qtype using the Context's
// default Bits and returns the Operation handle (spec.md §4.1's `query`).
func (c *Context) Query(name string, qtype uint16, h Handler) Operation {
	return c.QueryWithBits(name, qtype, c.bits, h)
}

// QueryWithBits is the overload that lets a caller override RD/EDNS0 for a
// single query (spec.md §6's second `query` signature). Per spec.md §4.1,
// query always constructs a remote Lookup — only query_reverse is allowed
// to answer locally from the hosts table. A hosts-known name still takes
// precedence over what the nameserver says, but only via the NXDOMAIN
// rewrite in remoteLookup.report (spec.md §4.2): a real nameserver denying
// a locally-hosted name's existence gets its answer rewritten, rather than
// the query bypassing the network entirely.
func (c *Context) QueryWithBits(name string, qtype uint16, bits Bits, h Handler) Operation {
	q := newQuery(name, qtype, bits)
	l := newRemoteLookup(c.sched, q, h)
	c.sched.submit(l)
	return l
}

// QueryReverse submits a PTR lookup for addr, answering locally from the
// hosts table when it has a record for addr and otherwise forwarding to
// the nameservers (spec.md §4.1's `query_reverse`).
func (c *Context) QueryReverse(addr net.IP, h Handler) (Operation, error) {
	name, ok := reverseName(addr)
	if !ok {
		return nil, &QueryError{Name: addr.String(), Type: dns.TypePTR, Err: ErrInvalidAddress}
	}
	q := newQuery(name, dns.TypePTR, c.bits)
	if names := c.sched.hosts.reverseLookup(addr); len(names) > 0 {
		l := newLocalLookupReverse(c.sched, q, addr, h)
		c.sched.submit(l)
		return l, nil
	}
	l := newRemoteLookup(c.sched, q, h)
	c.sched.submit(l)
	return l, nil
}

// SetCapacity sets the maximum number of concurrent in-flight remote
// lookups.
func (c *Context) SetCapacity(n int) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	c.sched.capacity = n
}

// SetAttempts sets the maximum number of datagram sends per lookup.
func (c *Context) SetAttempts(n int) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	c.sched.attempts = n
}

// SetInterval sets the configured retry interval (see ContextOptions.Interval).
func (c *Context) SetInterval(d time.Duration) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	c.sched.interval = d
}

// SetTimeout sets the per-attempt timeout.
func (c *Context) SetTimeout(d time.Duration) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	c.sched.timeout = d
}

// SetRotate toggles nameserver rotation.
func (c *Context) SetRotate(rotate bool) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	c.sched.rotate = rotate
}

// SetBufferSize sets the SO_SNDBUF/SO_RCVBUF size used on future socket
// opens. It does not affect sockets already open, mirroring
// original_source's own "socket already exists" limitation.
func (c *Context) SetBufferSize(n int) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	c.sched.bufferSize = n
}

// Close tears the Context down: the timer and sockets are released, and
// every Operation still scheduled or in flight receives a synchronous
// OnCancelled. An Operation whose result was already decided but not yet
// delivered, or whose TCP fallback is in progress, receives no callback.
// Close is idempotent.
func (c *Context) Close() {
	c.sched.close()
}
