package tcpconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/reactorcore/tcpreactor/internal/sockets"
)

// newConnPair returns a Conn wrapping one end of a connected, non-blocking
// Unix socketpair, and the raw fd of the other end for the test to drive
// directly, exercising Recv/Send against a real descriptor rather than a
// fake.
func newConnPair(t *testing.T) (*Conn, int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))

	c := New(fds[0], sockets.Address{}, sockets.Address{}, true)
	t.Cleanup(func() { _ = unix.Close(fds[1]) })
	return c, fds[1]
}

func TestRecvBuffersUntilAgain(t *testing.T) {
	c, peer := newConnPair(t)

	_, err := unix.Write(peer, []byte("hello"))
	require.NoError(t, err)

	outcome, err := c.Recv()
	require.NoError(t, err)
	assert.Equal(t, sockets.OutcomeOK, outcome)
	assert.Equal(t, 5, c.InboundLen())

	buf := make([]byte, 5)
	n, err := c.ReadInbound(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestRecvWithNothingPendingReturnsAgain(t *testing.T) {
	c, _ := newConnPair(t)

	outcome, err := c.Recv()
	require.NoError(t, err)
	assert.Equal(t, sockets.OutcomeAgain, outcome)
}

func TestRecvOnPeerCloseReturnsClosed(t *testing.T) {
	c, peer := newConnPair(t)
	require.NoError(t, unix.Close(peer))

	outcome, err := c.Recv()
	require.NoError(t, err)
	assert.Equal(t, sockets.OutcomeClosed, outcome)
}

func TestSendDrainsQueuedOutboundData(t *testing.T) {
	c, peer := newConnPair(t)
	c.QueueOutbound([]byte("world"))

	outcome, err := c.Send()
	require.NoError(t, err)
	assert.Equal(t, sockets.OutcomeCompleted, outcome)
	assert.True(t, c.OutboundEmpty())

	buf := make([]byte, 5)
	n, err := unix.Read(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
}

func TestSendWithNothingQueuedReportsCompleted(t *testing.T) {
	c, _ := newConnPair(t)

	outcome, err := c.Send()
	require.NoError(t, err)
	assert.Equal(t, sockets.OutcomeCompleted, outcome)
}

func TestDisconnectedFlagRoundTrips(t *testing.T) {
	c, _ := newConnPair(t)

	assert.False(t, c.IsDisconnected())
	c.MarkDisconnected()
	assert.True(t, c.IsDisconnected())
}

func TestContextRoundTrips(t *testing.T) {
	c, _ := newConnPair(t)

	assert.Nil(t, c.Context())
	c.SetContext("state")
	assert.Equal(t, "state", c.Context())
}

func TestIDEqualsFd(t *testing.T) {
	c, _ := newConnPair(t)
	assert.Equal(t, c.Fd(), c.ID())
}

func TestCloseReleasesDescriptor(t *testing.T) {
	c, peer := newConnPair(t)

	require.NoError(t, c.Close())

	_, err := unix.Write(peer, []byte("x"))
	assert.Error(t, err, "writing to the peer end after Close should fail once the descriptor is gone")
}
