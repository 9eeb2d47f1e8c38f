package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeOwner struct{ asserted int }

func (o *fakeOwner) AssertLoopGoroutine() { o.asserted++ }

func TestDispatchOrderIsReadWriteClose(t *testing.T) {
	c := New(1, nil, false)
	var order []string
	c.SetReadCallback(func() { order = append(order, "read") })
	c.SetWriteCallback(func() { order = append(order, "write") })
	c.SetCloseCallback(func() { order = append(order, "close") })

	c.Dispatch(EventRead | EventWrite | EventError)

	assert.Equal(t, []string{"read", "write", "close"}, order)
}

func TestHangupWithoutReadTriggersClose(t *testing.T) {
	c := New(1, nil, false)
	closed := false
	c.SetCloseCallback(func() { closed = true })

	c.Dispatch(EventHangup)

	assert.True(t, closed, "hangup with no pending read must trigger close")
}

func TestHangupWithReadDefersClose(t *testing.T) {
	c := New(1, nil, false)
	var order []string
	c.SetReadCallback(func() { order = append(order, "read") })
	c.SetCloseCallback(func() { order = append(order, "close") })

	c.Dispatch(EventHangup | EventRead)

	assert.Equal(t, []string{"read", "close"}, order, "buffered input must drain before close")
}

func TestDispatchIsNoopWhenDisconnected(t *testing.T) {
	c := New(1, nil, false)
	called := false
	c.SetReadCallback(func() { called = true })
	c.SetDisconnectedCheck(func() bool { return true })

	c.Dispatch(EventRead)

	assert.False(t, called, "dispatch must be a no-op once marked disconnected")
}

func TestDisableReadingClearsOnlyReadInterest(t *testing.T) {
	c := New(1, nil, false)
	c.SetEvents(EventRead | EventWrite)

	c.DisableReading()

	assert.False(t, c.IsReading())
	assert.True(t, c.IsWriting())
}

func TestSetEventsIsAnExclusiveSwap(t *testing.T) {
	c := New(1, nil, false)
	c.SetEvents(EventRead | EventWrite)

	c.SetEvents(EventWrite)

	assert.Equal(t, EventWrite, c.Events(), "SetEvents must replace, not accumulate, the interest mask")
}

func TestAssertMutableSkipsOwnerCheckWhenUnregistered(t *testing.T) {
	owner := &fakeOwner{}
	c := New(1, owner, false)

	c.SetReadCallback(func() {})

	assert.Equal(t, 0, owner.asserted, "an unregistered channel's callbacks may be set from any goroutine")
}

func TestAssertMutableChecksOwnerWhenRegistered(t *testing.T) {
	owner := &fakeOwner{}
	c := New(1, owner, false)
	c.MarkRegistered()

	c.SetReadCallback(func() {})

	assert.Equal(t, 1, owner.asserted, "a registered channel must assert loop-goroutine confinement")
}
