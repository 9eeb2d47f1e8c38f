package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactorcore/tcpreactor/internal/errs"
	"github.com/reactorcore/tcpreactor/internal/poller"
)

func newTestQueue(t *testing.T) *TimerQueue {
	fd, err := poller.NewTimerFD()
	require.NoError(t, err)
	t.Cleanup(func() { _ = poller.DisarmTimerFD(fd) })
	return New(fd)
}

func TestPushRejectsDuplicateID(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Push(1, time.Now().Add(time.Minute), nil))

	err := q.Push(1, time.Now().Add(time.Minute), nil)
	assert.ErrorIs(t, err, errs.ErrDuplicateTimerID)
}

func TestPushRemoveRoundTrip(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Push(1, time.Now().Add(time.Minute), nil))
	assert.Equal(t, 1, q.Len())

	require.NoError(t, q.Remove(1))
	assert.Equal(t, 0, q.Len())

	_, ok := q.NextDeadline()
	assert.False(t, ok, "queue should report no deadline once empty")
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	q := newTestQueue(t)
	assert.NoError(t, q.Remove(999))
	assert.Equal(t, 0, q.Len())
}

func TestAdjustFallsBackToPushWhenAbsent(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Adjust(1, time.Now().Add(time.Minute), nil))
	assert.Equal(t, 1, q.Len())
}

func TestAdjustPreservesCallbackWhenNil(t *testing.T) {
	q := newTestQueue(t)
	fired := false
	require.NoError(t, q.Push(1, time.Now().Add(time.Hour), func() { fired = true }))

	require.NoError(t, q.Adjust(1, time.Now().Add(-time.Second), nil))
	n := q.ExpireDue(time.Now())

	assert.Equal(t, 1, n)
	assert.True(t, fired, "Adjust with a nil callback must keep the existing one")
}

func TestNextDeadlineIsHeapMinimum(t *testing.T) {
	q := newTestQueue(t)
	later := time.Now().Add(time.Hour)
	sooner := time.Now().Add(time.Minute)

	require.NoError(t, q.Push(1, later, nil))
	require.NoError(t, q.Push(2, sooner, nil))

	deadline, ok := q.NextDeadline()
	require.True(t, ok)
	assert.True(t, deadline.Equal(sooner), "NextDeadline must be the earliest pending timer")
}

func TestExpireDueFiresOnlyPastDeadlines(t *testing.T) {
	q := newTestQueue(t)
	var fired []int
	require.NoError(t, q.Push(1, time.Now().Add(-time.Second), func() { fired = append(fired, 1) }))
	require.NoError(t, q.Push(2, time.Now().Add(time.Hour), func() { fired = append(fired, 2) }))

	n := q.ExpireDue(time.Now())

	assert.Equal(t, 1, n)
	assert.Equal(t, []int{1}, fired)
	assert.Equal(t, 1, q.Len(), "the still-future timer must remain queued")
}
