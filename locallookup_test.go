package dnscore

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/asyncdns/dnscore/hostsfile"
)

func testScheduler(hosts *HostsTable) *Scheduler {
	return newScheduler("test", []net.IP{net.ParseIP("127.0.0.1")}, hosts, nil)
}

func TestLocalLookupReverseResolvesFromHosts(t *testing.T) {
	hosts := NewHostsTable([]hostsfile.Record{{Addr: net.ParseIP("1.2.3.4"), Names: []string{"foo.local", "foo"}}})
	s := testScheduler(hosts)
	addr := net.ParseIP("1.2.3.4")
	name, _ := reverseName(addr)
	q := newQuery(name, dns.TypePTR, DefaultBits)
	h := newRecordingHandler()
	l := newLocalLookupReverse(s, q, addr, h)

	require.Equal(t, 1, l.credits())
	require.Equal(t, dns.TypePTR, l.Type())

	reschedule := l.execute(time.Now())
	require.False(t, reschedule)
	require.True(t, l.ready)

	l.dispatch()
	r := waitResult(t, h.done)
	require.Equal(t, "resolved", r.kind)
	require.Len(t, r.resp.Msg().Answer, 2)
}

func TestLocalLookupReverseExecuteOnlyOnce(t *testing.T) {
	hosts := NewHostsTable([]hostsfile.Record{{Addr: net.ParseIP("1.2.3.4"), Names: []string{"foo.local"}}})
	s := testScheduler(hosts)
	addr := net.ParseIP("1.2.3.4")
	name, _ := reverseName(addr)
	q := newQuery(name, dns.TypePTR, DefaultBits)
	h := newRecordingHandler()
	l := newLocalLookupReverse(s, q, addr, h)

	l.execute(time.Now())
	require.False(t, l.execute(time.Now())) // already ready, no-op
}

func TestLocalLookupReverseUnknownAddrAnswersEmpty(t *testing.T) {
	hosts := emptyHostsTable()
	s := testScheduler(hosts)
	addr := net.ParseIP("5.6.7.8")
	name, _ := reverseName(addr)
	q := newQuery(name, dns.TypePTR, DefaultBits)
	h := newRecordingHandler()
	l := newLocalLookupReverse(s, q, addr, h)

	l.execute(time.Now())
	l.dispatch()
	r := waitResult(t, h.done)
	require.Equal(t, "resolved", r.kind)
	require.Empty(t, r.resp.Msg().Answer)
}

func TestLocalLookupCancelBeforeExecute(t *testing.T) {
	hosts := emptyHostsTable()
	s := testScheduler(hosts)
	addr := net.ParseIP("1.2.3.4")
	name, _ := reverseName(addr)
	q := newQuery(name, dns.TypePTR, DefaultBits)
	h := newRecordingHandler()
	l := newLocalLookupReverse(s, q, addr, h)

	l.Cancel()
	r := waitResult(t, h.done)
	require.Equal(t, "cancelled", r.kind)

	// cancel again: idempotent, no further send
	l.Cancel()
	select {
	case <-h.done:
		t.Fatal("second cancel produced another callback")
	case <-time.After(50 * time.Millisecond):
	}
}
