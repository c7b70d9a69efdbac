package dnscore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubLookup is a minimal lookup for exercising queue bookkeeping in
// isolation, without pulling in the scheduler or network types.
type stubLookup struct {
	baseLookup
	name string
}

func (s *stubLookup) execute(now time.Time) bool { return false }
func (s *stubLookup) credits() int               { return 1 }
func (s *stubLookup) timestamp() time.Time       { return time.Time{} }
func (s *stubLookup) markTimeout()               {}
func (s *stubLookup) cancelInternal() Handler    { return s.takeHandler() }

var _ lookup = (*stubLookup)(nil)

func TestQueuePushPopFIFO(t *testing.T) {
	q := &queue{}
	a := &stubLookup{name: "a"}
	b := &stubLookup{name: "b"}
	c := &stubLookup{name: "c"}

	q.push(a)
	q.push(b)
	q.push(c)
	require.Equal(t, 3, q.len())

	require.Same(t, a, q.pop())
	require.Same(t, b, q.pop())
	require.Same(t, c, q.pop())
	require.Nil(t, q.pop())
	require.True(t, q.empty())
}

func TestQueueRemoveArbitraryPosition(t *testing.T) {
	q := &queue{}
	a := &stubLookup{name: "a"}
	b := &stubLookup{name: "b"}
	c := &stubLookup{name: "c"}
	q.push(a)
	q.push(b)
	q.push(c)

	atFront := q.remove(b)
	require.False(t, atFront)
	require.Equal(t, 2, q.len())
	require.Nil(t, b.element())
	require.Nil(t, b.queueRef())

	require.Same(t, a, q.front())
	atFront = q.remove(a)
	require.True(t, atFront)
	require.Same(t, c, q.pop())
}

func TestQueueRemoveAbsentIsNoop(t *testing.T) {
	q := &queue{}
	a := &stubLookup{name: "a"}
	require.False(t, q.remove(a))
}

func TestQueuePopBatch(t *testing.T) {
	q := &queue{}
	for i := 0; i < 5; i++ {
		q.push(&stubLookup{})
	}
	batch := q.popBatch(3)
	require.Len(t, batch, 3)
	require.Equal(t, 2, q.len())

	rest := q.popBatch(10)
	require.Len(t, rest, 2)
	require.Empty(t, q.popBatch(1))
}

func TestQueueSetsQueueRefOnPush(t *testing.T) {
	q := &queue{}
	a := &stubLookup{}
	q.push(a)
	require.Same(t, q, a.queueRef())
	q.pop()
	require.Nil(t, a.queueRef())
}
