package dnscore

import "time"

// Clock is the one piece of the host event-loop interface this module
// still asks callers to model explicitly (spec.md §6). Go's runtime
// already multiplexes socket readiness internally, so the fd-registration
// half of the original interface (add/remove monitors) has no pluggable
// counterpart here — see SPEC_FULL.md §6 and DESIGN.md for the rationale.
// Now lets tests inject a fake, deterministic time source instead of
// sleeping real wall-clock seconds.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
