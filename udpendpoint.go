package dnscore

import (
	"net"
	"sync"
)

// subKey identifies a subscriber: the nameserver a datagram must come from
// and the query id it must carry (spec.md §3 invariant 4).
type subKey struct {
	nameserver string
	id         uint16
}

// inboundDatagram is a parsed response awaiting delivery, buffered by the
// read goroutine and drained by the scheduler's step phase 1 — spec.md
// §4.4: "not delivered synchronously, to bound per-tick work and isolate
// user-callback faults."
type inboundDatagram struct {
	from net.IP
	resp *Response
}

// udpEndpoint is one per address family (spec.md §4.4). It lazily opens its
// socket on first send, and owns a background goroutine that reads
// datagrams off that socket for as long as the endpoint is open. Grounded
// on the teacher library's pattern of a background reader goroutine feeding
// a channel/buffer consumed elsewhere (see bootstrap.go's resolver
// goroutines), adapted here to a buffered slice so the scheduler can bound
// how much of it it drains per tick.
type udpEndpoint struct {
	network string // "udp4" or "udp6"
	sched   *Scheduler

	mu      sync.Mutex
	conn    *net.UDPConn
	opening bool
	subs    map[subKey]*remoteLookup
	pending []inboundDatagram
	closed  bool
}

func newUDPEndpoint(network string, sched *Scheduler) *udpEndpoint {
	return &udpEndpoint{
		network: network,
		sched:   sched,
		subs:    make(map[subKey]*remoteLookup),
	}
}

// ensureOpen opens the socket on first use and starts the reader. Safe to
// call repeatedly; only the first caller after construction (or after a
// prior open failure) does the work.
func (e *udpEndpoint) ensureOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil || e.closed {
		return nil
	}
	conn, err := net.ListenUDP(e.network, nil)
	if err != nil {
		return err
	}
	if n := e.sched.bufferSize; n > 0 {
		_ = conn.SetReadBuffer(n)
		_ = conn.SetWriteBuffer(n)
	}
	e.conn = conn
	go e.readLoop(conn)
	return nil
}

// readLoop drains the socket until it is closed, parsing each datagram and
// appending it to the pending buffer for the scheduler to pick up. Malformed
// datagrams are dropped silently (spec.md §7).
func (e *udpEndpoint) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		resp, err := ResponseFromWire(buf[:n])
		if err != nil {
			continue
		}
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		e.pending = append(e.pending, inboundDatagram{from: addr.IP, resp: resp})
		e.mu.Unlock()
	}
}

// send transmits query to ns, opening the socket if this is the first send.
func (e *udpEndpoint) send(ns net.IP, query *Query) error {
	if err := e.ensureOpen(); err != nil {
		return err
	}
	b, err := query.Pack()
	if err != nil {
		return err
	}
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	_, err = conn.WriteToUDP(b, &net.UDPAddr{IP: ns, Port: e.sched.port})
	return err
}

// subscribe registers l as the handler for responses from ns carrying id.
func (e *udpEndpoint) subscribe(ns net.IP, id uint16, l *remoteLookup) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[subKey{nameserver: ns.String(), id: id}] = l
}

// unsubscribe removes a prior subscription. Safe to call when absent.
func (e *udpEndpoint) unsubscribe(ns net.IP, id uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, subKey{nameserver: ns.String(), id: id})
}

// deliver routes up to max pending datagrams to their subscribed lookups
// and returns how many it consumed. Called from the scheduler's step,
// outside the scheduler's own lock (see scheduler.go's step comment):
// onUDPResponse may call back into done, which locks the scheduler.
func (e *udpEndpoint) deliver(max int) int {
	if max <= 0 {
		return 0
	}
	e.mu.Lock()
	n := max
	if n > len(e.pending) {
		n = len(e.pending)
	}
	batch := e.pending[:n]
	e.pending = e.pending[n:]
	e.mu.Unlock()

	for _, d := range batch {
		e.mu.Lock()
		l, ok := e.subs[subKey{nameserver: d.from.String(), id: d.resp.msg.Id}]
		e.mu.Unlock()
		if !ok {
			continue
		}
		l.onUDPResponse(d.from, d.resp)
	}
	return len(batch)
}

// close shuts the socket down. The reader goroutine exits on its next
// failed read.
func (e *udpEndpoint) close() {
	e.mu.Lock()
	e.closed = true
	conn := e.conn
	e.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
