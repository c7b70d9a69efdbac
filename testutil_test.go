package dnscore

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/miekg/dns"
)

// mockNameserver is a loopback UDP (and, optionally, TCP) server standing
// in for an upstream nameserver in the scheduler's integration-style
// tests. Returning a nil response from the handler simulates a nameserver
// that never replies, for timeout scenarios.
type mockNameserver struct {
	ip   net.IP
	port int
	udp  *net.UDPConn
	tcp  net.Listener
}

func startMockNameserver(t *testing.T, handler func(*dns.Msg) *dns.Msg) *mockNameserver {
	t.Helper()
	return startMockNameserverOn(t, net.ParseIP("127.0.0.1"), 0, handler)
}

// startMockNameserverOn binds to a specific loopback IP and port (0 lets
// the OS choose), so multiple mocks can share one port across distinct
// 127.0.0.0/8 addresses — needed to exercise nameserver selection, since
// this module always uses one port for every configured nameserver.
func startMockNameserverOn(t *testing.T, ip net.IP, port int, handler func(*dns.Msg) *dns.Msg) *mockNameserver {
	t.Helper()
	udp, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		t.Fatalf("mock nameserver: listen udp: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(udp.LocalAddr().String())
	boundPort, _ := strconv.Atoi(portStr)

	m := &mockNameserver{ip: ip, port: boundPort, udp: udp}
	go m.serveUDP(handler)
	return m
}

// withTCP starts a TCP listener on the same port as the UDP socket and
// answers every connection via handler, for truncation-fallback scenarios.
func (m *mockNameserver) withTCP(t *testing.T, handler func(*dns.Msg) *dns.Msg) *mockNameserver {
	t.Helper()
	tcp, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: m.ip, Port: m.port})
	if err != nil {
		t.Fatalf("mock nameserver: listen tcp: %v", err)
	}
	m.tcp = tcp
	go m.serveTCP(handler)
	return m
}

func (m *mockNameserver) serveUDP(handler func(*dns.Msg) *dns.Msg) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := m.udp.ReadFromUDP(buf)
		if err != nil {
			return
		}
		req := new(dns.Msg)
		if err := req.Unpack(buf[:n]); err != nil {
			continue
		}
		resp := handler(req)
		if resp == nil {
			continue
		}
		b, err := resp.Pack()
		if err != nil {
			continue
		}
		_, _ = m.udp.WriteToUDP(b, addr)
	}
}

func (m *mockNameserver) serveTCP(handler func(*dns.Msg) *dns.Msg) {
	for {
		conn, err := m.tcp.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			var lenPrefix [2]byte
			if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
				return
			}
			reqLen := binary.BigEndian.Uint16(lenPrefix[:])
			reqBody := make([]byte, reqLen)
			if _, err := io.ReadFull(conn, reqBody); err != nil {
				return
			}
			req := new(dns.Msg)
			if err := req.Unpack(reqBody); err != nil {
				return
			}
			resp := handler(req)
			if resp == nil {
				return
			}
			b, err := resp.Pack()
			if err != nil {
				return
			}
			var out [2]byte
			binary.BigEndian.PutUint16(out[:], uint16(len(b)))
			if _, err := conn.Write(out[:]); err != nil {
				return
			}
			_, _ = conn.Write(b)
		}()
	}
}

// recordingHandler captures the single terminal callback delivered for an
// Operation, for assertion from the test's goroutine.
type recordingHandler struct {
	done chan callResult
}

type callResult struct {
	kind  string // "resolved", "failure", "timeout", "cancelled"
	resp  *Response
	rcode int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan callResult, 1)}
}

func (h *recordingHandler) OnResolved(op Operation, resp *Response) {
	h.done <- callResult{kind: "resolved", resp: resp}
}

func (h *recordingHandler) OnFailure(op Operation, rcode int) {
	h.done <- callResult{kind: "failure", rcode: rcode}
}

func (h *recordingHandler) OnTimeout(op Operation) {
	h.done <- callResult{kind: "timeout"}
}

func (h *recordingHandler) OnCancelled(op Operation) {
	h.done <- callResult{kind: "cancelled"}
}

func (m *mockNameserver) close() {
	m.udp.Close()
	if m.tcp != nil {
		m.tcp.Close()
	}
}

// newTestContext builds a Context pointed at servers, with its scheduler's
// nameserver port overridden to the mock's (tests can't bind :53).
func newTestContext(t *testing.T, opt ContextOptions, servers ...*mockNameserver) *Context {
	t.Helper()
	if opt.Nameservers == nil {
		for _, s := range servers {
			opt.Nameservers = append(opt.Nameservers, s.ip)
		}
	}
	ctx, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(servers) > 0 {
		ctx.sched.port = servers[0].port
	}
	return ctx
}
