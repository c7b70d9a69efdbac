package dnscore

// Handler receives the terminal outcome of a submitted query. At most one
// of these four methods is invoked, at most once, per Operation, and
// exactly one unless the Context is closed first (see Context.Close).
//
// OnResolved is also known as onReceived in the library this package was
// ported from; Go has no method aliasing, so only one name is kept.
type Handler interface {
	// OnResolved is called when a response matching the query was
	// received, regardless of its rcode (NXDOMAIN is optionally rewritten
	// first, see RemoteLookup's report policy).
	OnResolved(op Operation, resp *Response)

	// OnFailure is called for a terminal outcome that is neither a
	// received response, a timeout, nor a cancellation. No lookup in this
	// package produces this outcome; it is part of the Handler contract
	// listed in spec.md §6.
	OnFailure(op Operation, rcode int)

	// OnTimeout is called when no matching response arrived within the
	// timeout after the last of the configured attempts.
	OnTimeout(op Operation)

	// OnCancelled is called synchronously from Cancel, before Cancel
	// returns.
	OnCancelled(op Operation)
}

// Operation is the handle returned to the caller of Query/QueryReverse.
// Cancel is idempotent: a second call is a silent no-op (spec.md §8
// property 6).
type Operation interface {
	// Cancel aborts the operation. If it has not already produced a
	// terminal callback, OnCancelled is invoked before Cancel returns.
	Cancel()

	// Name returns the name being looked up.
	Name() string

	// Type returns the record type being looked up.
	Type() uint16
}
