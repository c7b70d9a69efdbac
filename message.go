package dnscore

import (
	"net"
	"strconv"

	"github.com/miekg/dns"
)

// qName returns the query name of the first question in m, or "" if m has
// no question section.
func qName(m *dns.Msg) string {
	if len(m.Question) == 0 {
		return ""
	}
	return m.Question[0].Name
}

// qType returns the query type of the first question in m.
func qType(m *dns.Msg) uint16 {
	if len(m.Question) == 0 {
		return 0
	}
	return m.Question[0].Qtype
}

// rcodeString renders a response code as a name, falling back to its
// numeric value for codes dns.RcodeToString doesn't know about.
func rcodeString(rcode int) string {
	if s, ok := dns.RcodeToString[rcode]; ok {
		return s
	}
	return strconv.Itoa(rcode)
}

// matchesQuery reports whether resp is a plausible answer to q: same id,
// same single question (name, type and class). This is the only check the
// scheduler performs before accepting a datagram as the answer to an
// in-flight lookup — see Query.Matches.
func matchesQuery(q *dns.Msg, resp *dns.Msg) bool {
	if resp.Id != q.Id {
		return false
	}
	if len(resp.Question) != 1 || len(q.Question) != 1 {
		return false
	}
	rq, qq := resp.Question[0], q.Question[0]
	return rq.Qtype == qq.Qtype && rq.Qclass == qq.Qclass && equalFoldName(rq.Name, qq.Name)
}

func equalFoldName(a, b string) bool {
	return dns.CanonicalName(a) == dns.CanonicalName(b)
}

// emptyAnswer builds a NOERROR, zero-answer response that preserves the
// question section of resp. Used to rewrite an upstream NXDOMAIN into a
// "no error, no records" answer when the hosts table has a record for the
// queried name (spec'd NXDOMAIN synthesis, see RemoteLookup.report).
func emptyAnswer(resp *dns.Msg) *dns.Msg {
	fake := new(dns.Msg)
	fake.SetReply(resp)
	fake.Rcode = dns.RcodeSuccess
	fake.Question = resp.Question
	fake.Answer = nil
	fake.Ns = nil
	fake.Extra = nil
	return fake
}

// ptrAnswer builds a synthesised PTR response for a reverse lookup answered
// from the hosts table.
func ptrAnswer(q *dns.Msg, names []string) *dns.Msg {
	a := new(dns.Msg)
	a.SetReply(q)
	a.Authoritative = true
	answer := make([]dns.RR, 0, len(names))
	for _, name := range names {
		answer = append(answer, &dns.PTR{
			Hdr: dns.RR_Header{
				Name:   qName(q),
				Rrtype: dns.TypePTR,
				Class:  dns.ClassINET,
				Ttl:    3600,
			},
			Ptr: dns.Fqdn(name),
		})
	}
	a.Answer = answer
	return a
}

// addressAnswer builds a synthesised A/AAAA response for a forward lookup
// answered from the hosts table.
func addressAnswer(q *dns.Msg, qtype uint16, addrs []net.IP) *dns.Msg {
	a := new(dns.Msg)
	a.SetReply(q)
	a.Authoritative = true
	for _, addr := range addrs {
		hdr := dns.RR_Header{Name: qName(q), Rrtype: qtype, Class: dns.ClassINET, Ttl: 3600}
		switch qtype {
		case dns.TypeA:
			if ip4 := addr.To4(); ip4 != nil {
				a.Answer = append(a.Answer, &dns.A{Hdr: hdr, A: ip4})
			}
		case dns.TypeAAAA:
			if ip4 := addr.To4(); ip4 == nil {
				if ip6 := addr.To16(); ip6 != nil {
					a.Answer = append(a.Answer, &dns.AAAA{Hdr: hdr, AAAA: ip6})
				}
			}
		}
	}
	return a
}
