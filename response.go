package dnscore

import "github.com/miekg/dns"

// Response wraps the wire-decoded answer to a Query. Decoding itself is
// out of scope for this module (spec.md §1) and delegated entirely to
// github.com/miekg/dns; Response exposes only the handful of accessors
// the scheduler and lookup state machines need.
type Response struct {
	msg *dns.Msg
}

// ResponseFromWire parses a raw datagram or TCP payload into a Response.
// Malformed input is reported as an error and must be dropped by the
// caller (spec.md §7: "malformed inbound datagrams: silently dropped by
// the endpoint parser").
func ResponseFromWire(b []byte) (*Response, error) {
	m := new(dns.Msg)
	if err := m.Unpack(b); err != nil {
		return nil, err
	}
	return &Response{msg: m}, nil
}

// Rcode returns the response's result code.
func (r *Response) Rcode() int { return r.msg.Rcode }

// Truncated reports whether the TC bit is set.
func (r *Response) Truncated() bool { return r.msg.Truncated }

// QuestionName extracts the name from the response's question section,
// used to find the original host when rewriting an NXDOMAIN.
func (r *Response) QuestionName() string { return qName(r.msg) }

// Msg exposes the underlying wire message for callers that need the full
// answer (e.g. the Handler implementation iterating RRs).
func (r *Response) Msg() *dns.Msg { return r.msg }
