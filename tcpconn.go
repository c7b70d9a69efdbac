package dnscore

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// tcpConnection is the per-lookup, per-nameserver TCP fallback opened on
// UDP truncation (spec.md §4.5). It sends the original query length-prefixed,
// reads a length-prefixed response, and reports back to the remoteLookup
// that created it. It owns its own goroutine and dial/read deadline so a
// slow or dead nameserver cannot stall the scheduler.
type tcpConnection struct {
	lookup    *remoteLookup
	truncated *Response

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// newTCPConnection dials nameserver and starts the exchange in a background
// goroutine. truncated is the UDP response that triggered the fallback,
// kept to hand back via onTCPFailure if the TCP leg never completes
// (spec.md §4.2's "best-effort degradation").
func newTCPConnection(clock Clock, nameserver net.IP, query *Query, truncated *Response, l *remoteLookup) *tcpConnection {
	c := &tcpConnection{lookup: l, truncated: truncated}
	go c.run(nameserver, query, l.sched.timeout)
	return c
}

func (c *tcpConnection) run(nameserver net.IP, query *Query, timeout time.Duration) {
	port := strconv.Itoa(c.lookup.sched.port)
	addr := net.JoinHostPort(nameserver.String(), port)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		c.fail()
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	_ = conn.SetDeadline(deadline)

	wire, err := query.Pack()
	if err != nil {
		c.fail()
		return
	}
	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(wire)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		c.fail()
		return
	}
	if _, err := conn.Write(wire); err != nil {
		c.fail()
		return
	}

	if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
		c.fail()
		return
	}
	n := binary.BigEndian.Uint16(lenPrefix[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(conn, body); err != nil {
		c.fail()
		return
	}

	resp, err := ResponseFromWire(body)
	if err != nil {
		c.fail()
		return
	}
	c.lookup.onTCPResponse(resp)
}

func (c *tcpConnection) fail() {
	c.lookup.onTCPFailure(c.truncated)
}

// close tears down the underlying socket, if one was opened. Safe to call
// more than once and safe to call before the dial completes: run will see
// closed set and unwind without reporting.
func (c *tcpConnection) close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
