package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/reactorcore/tcpreactor/internal/channel"
	"github.com/reactorcore/tcpreactor/internal/errs"
)

func TestAddThenPollReportsReadableChannel(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	require.NoError(t, unix.SetNonblock(fds[0], true))

	ch := channel.New(fds[0], nil, false)
	ch.SetEvents(channel.EventRead)
	require.NoError(t, p.Add(ch))

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	events, err := p.Poll(1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Same(t, ch, events[0].Channel)
	assert.NotZero(t, events[0].Ready&channel.EventRead)
}

func TestDoubleAddIsRejected(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	ch := channel.New(fds[0], nil, false)
	require.NoError(t, p.Add(ch))

	err = p.Add(ch)
	assert.ErrorIs(t, err, errs.ErrChannelAlreadyRegistered)
}

func TestRemoveUnknownChannelIsNoop(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	ch := channel.New(999, nil, false)
	assert.NoError(t, p.Remove(ch))
}

func TestModifyUnregisteredChannelErrors(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	ch := channel.New(999, nil, false)
	err = p.Modify(ch)
	assert.ErrorIs(t, err, errs.ErrChannelNotRegistered)
}

func TestPollTimesOutWithNoEvents(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	start := time.Now()
	events, err := p.Poll(50)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWakeupFDRoundTrip(t *testing.T) {
	fd, err := NewWakeupFD()
	require.NoError(t, err)
	defer unix.Close(fd)

	require.NoError(t, Wake(fd))
	require.NoError(t, DrainWakeup(fd))
}

func TestTimerFDArmAndDisarm(t *testing.T) {
	fd, err := NewTimerFD()
	require.NoError(t, err)
	defer unix.Close(fd)

	require.NoError(t, ArmTimerFD(fd, 10*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	n, err := DrainTimerFD(fd)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	require.NoError(t, DisarmTimerFD(fd))
}
