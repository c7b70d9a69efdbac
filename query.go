package dnscore

import (
	"crypto/rand"
	"encoding/binary"
	"net"

	"github.com/miekg/dns"
)

// Bits carries the small set of header flags a caller may request on a
// query, mirroring spec's "bits to include" (RD and friends) plus the
// handful of EDNS0 knobs resolv.conf's "options" line can turn on.
type Bits struct {
	// RecursionDesired sets the RD bit. Nearly always true for a stub
	// resolver talking to a full-service nameserver.
	RecursionDesired bool

	// EDNS0 adds an OPT pseudo-record advertising the given UDP payload
	// size. A size of 0 disables EDNS0 entirely.
	EDNS0UDPSize uint16
}

// DefaultBits is RD set, no EDNS0 — a plain stub-resolver query.
var DefaultBits = Bits{RecursionDesired: true}

// Query is the immutable question this library sends to a nameserver. It
// is built once, when a lookup is submitted, and never mutated afterwards
// (spec.md §3: "immutable once built").
type Query struct {
	msg *dns.Msg
}

// newQuery builds a Query for a forward or PTR lookup. The 16-bit id is
// drawn from a CSPRNG: spec.md §9 explicitly calls out rand()-seeded ids
// as inadequate, and notes that uniqueness is not required for
// correctness since subscriptions are additionally keyed by nameserver.
func newQuery(name string, qtype uint16, bits Bits) *Query {
	m := new(dns.Msg)
	// SetQuestion assigns its own id and forces RD on, so both are set after it.
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.Id = randomID()
	m.RecursionDesired = bits.RecursionDesired
	if bits.EDNS0UDPSize > 0 {
		m.SetEdns0(bits.EDNS0UDPSize, false)
	}
	return &Query{msg: m}
}

func randomID() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable on any real
		// platform; fall back to a fixed id rather than panic, the
		// subscription table still disambiguates by nameserver.
		return 0
	}
	return binary.BigEndian.Uint16(b[:])
}

// ID returns the query's 16-bit identifier.
func (q *Query) ID() uint16 { return q.msg.Id }

// Name returns the fully-qualified query name.
func (q *Query) Name() string { return qName(q.msg) }

// Type returns the query's record type.
func (q *Query) Type() uint16 { return qType(q.msg) }

// Pack serialises the query to wire format.
func (q *Query) Pack() ([]byte, error) { return q.msg.Pack() }

// Matches reports whether resp is a plausible answer to q: matching id
// and matching question tuple (name, type, class). Per spec.md §4.2,
// this is the only check performed before a datagram is accepted as the
// response to this lookup.
func (q *Query) Matches(resp *Response) bool {
	return matchesQuery(q.msg, resp.msg)
}

// reverseName builds the in-addr.arpa / ip6.arpa name for a PTR query
// against ip. Reverse-address string construction is an out-of-scope
// external collaborator per spec.md §1; this is the minimal RFC
// 1035/3596 construction needed to drive QueryReverse, not a general
// address-formatting library.
func reverseName(ip net.IP) (string, bool) {
	rev, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return "", false
	}
	return rev, true
}
