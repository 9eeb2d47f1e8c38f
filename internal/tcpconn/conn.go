// Package tcpconn implements the reactor's TcpConnection (§4.5): an
// accepted socket paired with a Channel, inbound/outbound buffers, and the
// Active/Closing/Destroyed state machine.
//
// Grounded on the reference reactor's conn.Conn (moqsien-gknet/conn/conn.go
// for the Fd+OutBuffer/InBuffer shape, conn_read.go/conn_write.go/
// conn_handler.go for the edge-triggered recv/send loops), generalized
// from a single concrete type entangled with *poll.Poller into one that
// only knows about *channel.Channel and the sockets package, and with the
// disconnected flag and idle-reset bookkeeping the specification's state
// machine requires that the reference connection never tracked.
package tcpconn

import (
	"sync"
	"sync/atomic"

	"github.com/panjf2000/gnet/v2/pkg/buffer/elastic"

	"github.com/reactorcore/tcpreactor/internal/channel"
	"github.com/reactorcore/tcpreactor/internal/sockets"
)

// defaultReadBufferSize matches the reference reactor's buffer pool
// default when no explicit size has been configured.
const defaultReadBufferSize = 64 << 10

var readBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, defaultReadBufferSize)
		return &buf
	},
}

func getReadBuffer() []byte {
	return *readBufferPool.Get().(*[]byte)
}

func putReadBuffer(buf []byte) {
	readBufferPool.Put(&buf)
}

// Conn is one accepted TCP connection. The fd is owned by Conn for its
// lifetime; Close releases it.
type Conn struct {
	fd     int
	id     int // connection identifier; equal to fd, per §3
	local  sockets.Address
	remote sockets.Address

	channel *channel.Channel

	inBuffer  elastic.RingBuffer
	outBuffer *elastic.Buffer

	keepAlive bool

	disconnected atomic.Bool

	ctx any // arbitrary handler-supplied context, mirroring the reference Conn.Ctx
}

// New constructs a Conn for an already-accepted, already-nonblocking fd.
// The caller is responsible for creating and attaching a Channel via
// SetChannel before registering the connection with a Poller.
func New(fd int, local, remote sockets.Address, keepAlive bool) *Conn {
	c := &Conn{
		fd:        fd,
		id:        fd,
		local:     local,
		remote:    remote,
		keepAlive: keepAlive,
	}
	c.outBuffer, _ = elastic.New(1024)
	return c
}

// ID returns the connection identifier used as the key into the
// connection table and the TimerQueue (§3).
func (c *Conn) ID() int { return c.id }

// Fd returns the underlying socket descriptor.
func (c *Conn) Fd() int { return c.fd }

// LocalAddr and RemoteAddr return the addresses captured at accept time.
func (c *Conn) LocalAddr() sockets.Address  { return c.local }
func (c *Conn) RemoteAddr() sockets.Address { return c.remote }

// KeepAlive reports whether a COMPLETED send should return the connection
// to read interest instead of closing it (§4.6's write-ready handler).
func (c *Conn) KeepAlive() bool { return c.keepAlive }

// SetChannel attaches the Channel the server registered for this
// connection's fd. Called once, before the channel is added to a Poller.
func (c *Conn) SetChannel(ch *channel.Channel) { c.channel = ch }

// Channel returns the attached Channel, or nil before SetChannel.
func (c *Conn) Channel() *channel.Channel { return c.channel }

// Context/SetContext let a handler attach arbitrary per-connection state,
// mirroring the reference Conn.Ctx field.
func (c *Conn) Context() any     { return c.ctx }
func (c *Conn) SetContext(v any) { c.ctx = v }

// IsDisconnected reports whether the close handler has already run for
// this connection. Worker tasks must check this immediately after
// upgrading a weak handle (§5, §8 invariant 5).
func (c *Conn) IsDisconnected() bool { return c.disconnected.Load() }

// MarkDisconnected flips the disconnected flag. Idempotent; called once by
// the close handler before the connection leaves the table.
func (c *Conn) MarkDisconnected() { c.disconnected.Store(true) }

// Recv pulls bytes from the socket into the inbound buffer until AGAIN,
// per §4.5. It returns OutcomeOK once at least one byte was appended
// across the loop, OutcomeAgain if nothing was available at all,
// OutcomeClosed on peer half-close, or OutcomeError on a system failure.
func (c *Conn) Recv() (sockets.IOOutcome, error) {
	gotAny := false
	for {
		buf := getReadBuffer()
		n, outcome, err := sockets.Recv(c.fd, buf)
		if n > 0 {
			_, _ = c.inBuffer.Write(buf[:n])
			gotAny = true
		}
		putReadBuffer(buf)

		switch outcome {
		case sockets.OutcomeOK:
			continue // edge-triggered: keep draining until the kernel says AGAIN
		case sockets.OutcomeAgain:
			if gotAny {
				return sockets.OutcomeOK, nil
			}
			return sockets.OutcomeAgain, nil
		case sockets.OutcomeClosed:
			return sockets.OutcomeClosed, nil
		default:
			return sockets.OutcomeError, err
		}
	}
}

// InboundLen reports how many bytes are currently buffered for the
// handler to consume.
func (c *Conn) InboundLen() int {
	return c.inBuffer.Buffered()
}

// ReadInbound copies up to len(p) buffered inbound bytes into p, draining
// them from the buffer. It is the handler-facing read surface over the
// ring buffer Recv fills.
func (c *Conn) ReadInbound(p []byte) (int, error) {
	return c.inBuffer.Read(p)
}

// QueueOutbound appends data to the outbound buffer for the next Send
// call, used both for a fresh response and for the remainder of a
// previous partial write.
func (c *Conn) QueueOutbound(data []byte) {
	_, _ = c.outBuffer.Write(data)
}

// OutboundEmpty reports whether everything queued has been sent.
func (c *Conn) OutboundEmpty() bool {
	return c.outBuffer.IsEmpty()
}

// Send pushes bytes from the outbound buffer to the socket until AGAIN,
// per §4.5. Returns OutcomeCompleted once the outbound buffer is fully
// drained, OutcomeAgain with bytes still queued, OutcomeClosed, or
// OutcomeError.
func (c *Conn) Send() (sockets.IOOutcome, error) {
	for !c.outBuffer.IsEmpty() {
		iov := c.outBuffer.Peek(-1)
		if len(iov) == 0 {
			break
		}
		var (
			n       int
			outcome sockets.IOOutcome
			err     error
		)
		if len(iov) > 1 {
			n, outcome, err = sockets.SendV(c.fd, iov)
		} else {
			n, outcome, err = sockets.Send(c.fd, iov[0])
		}
		if n > 0 {
			c.outBuffer.Discard(n)
		}
		switch outcome {
		case sockets.OutcomeOK:
			continue // more may fit; keep pushing until AGAIN or drained
		case sockets.OutcomeAgain:
			return sockets.OutcomeAgain, nil
		case sockets.OutcomeClosed:
			return sockets.OutcomeClosed, nil
		default:
			return sockets.OutcomeError, err
		}
	}
	return sockets.OutcomeCompleted, nil
}

// Close releases the connection's socket and buffers. It does not touch
// the Channel or connection table — that serialization belongs to the
// server's close handler (§4.6).
//
// Close does not wait for a worker task already inside Recv/Send on this
// connection to return; nothing under server/ or tcpconn tracks in-flight
// callers, so a close racing a slow worker can release the fd and buffers
// out from under it. The at-most-one-in-flight dispatch policy (§4.6)
// narrows this to the case where the idle timer or a peer error fires
// mid-task rather than between tasks; a real fix needs a per-connection
// refcount so handleClose defers resource release until it drops to zero.
func (c *Conn) Close() error {
	c.inBuffer.Done()
	c.outBuffer.Release()
	return sockets.CloseFd(c.fd)
}
