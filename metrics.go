package dnscore

import (
	"expvar"
	"fmt"
)

// getVarInt returns the *expvar.Int registered under the given path,
// creating it on first use. Mirrors the teacher library's own
// routedns.<base>.<id>.<name> naming convention, substituting this
// package's name for the base namespace.
func getVarInt(id, name string) *expvar.Int {
	fullname := fmt.Sprintf("dnscore.context.%s.%s", id, name)
	if v := expvar.Get(fullname); v != nil {
		return v.(*expvar.Int)
	}
	return expvar.NewInt(fullname)
}

// contextMetrics holds the counters exposed for a single Context. Every
// counter here corresponds to a terminal or transitional event named in
// the scheduler's step function.
type contextMetrics struct {
	sent              *expvar.Int // datagrams sent
	resolved          *expvar.Int // onResolved deliveries
	timedOut          *expvar.Int // onTimeout deliveries
	cancelled         *expvar.Int // onCancelled deliveries
	truncated         *expvar.Int // UDP responses that triggered a TCP retry
	tcpFallback       *expvar.Int // TCP connections opened
	nxdomainRewritten *expvar.Int // NXDOMAIN answers rewritten because hosts knows the name
	inFlight          *expvar.Int // size of the in-flight queue as of the last scheduler step
}

func newContextMetrics(id string) *contextMetrics {
	return &contextMetrics{
		sent:              getVarInt(id, "sent"),
		resolved:          getVarInt(id, "resolved"),
		timedOut:          getVarInt(id, "timedout"),
		cancelled:         getVarInt(id, "cancelled"),
		truncated:         getVarInt(id, "truncated"),
		tcpFallback:       getVarInt(id, "tcp_fallback"),
		nxdomainRewritten: getVarInt(id, "nxdomain_rewritten"),
		inFlight:          getVarInt(id, "in_flight"),
	}
}
