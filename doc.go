/*
Package dnscore implements the scheduling and dispatch engine of an
asynchronous stub DNS resolver. It accepts queries from user code, drives
them through retries and timeouts against one or more configured upstream
nameservers over UDP, promotes truncated responses to TCP, answers selected
queries locally from a static hosts table, and reports the outcome of every
query to a caller-supplied Handler exactly once, unless the Context is
closed before that outcome is delivered.

Context

Context is the entry point. It owns a Scheduler, the two UDP endpoints
(one per address family) and the hosts table, and exposes Query and
QueryReverse plus a handful of runtime knobs (capacity, attempts, interval,
timeout, buffer size, rotate).

Lookups

Every submitted query becomes either a remote lookup, which sends
datagrams to upstream nameservers and retries or falls back to TCP on
truncation, or a local lookup, which is answered synchronously from the
hosts table but still reports on the next scheduler tick for uniform
delivery semantics.

Scheduler

The scheduler holds three queues (scheduled, in-flight, ready) and a
single pacing timer. Each time the timer fires it delivers buffered
inbound UDP datagrams, flushes a bounded batch of ready callbacks, starts
new lookups up to the configured capacity, sweeps timed-out in-flight
lookups, and rearms the timer.

This package deliberately does not implement recursive resolution, DNSSEC
validation, a caching layer that survives process restarts, or a DNS
server role — it only forwards queries to nameservers that are already
known to the caller.
*/
package dnscore
