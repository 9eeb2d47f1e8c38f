// Package server implements the reactor's TcpServer (§4.6): the listening
// socket, the accept path, and the read-ready/write-ready/close handlers
// that drive TcpConnection through its state machine.
//
// Grounded on the reference reactor's Engine/Eloop pairing
// (moqsien-gknet/engine/engine.go owning a listener, a balancer and a
// main Eloop; moqsien-gknet/eloop/eventloop.go's Accept/packTcpConn
// accept path), generalized from a multi-loop design with a Balancer
// fan-out to this specification's single-EventLoop server, and extended
// with the weak-handle/at-most-one-in-flight discipline the reference
// accept path never needed because it called straight back into
// synchronous conn methods.
package server

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/reactorcore/tcpreactor/internal/channel"
	"github.com/reactorcore/tcpreactor/internal/config"
	"github.com/reactorcore/tcpreactor/internal/errs"
	"github.com/reactorcore/tcpreactor/internal/eventloop"
	"github.com/reactorcore/tcpreactor/internal/logging"
	"github.com/reactorcore/tcpreactor/internal/sockets"
	"github.com/reactorcore/tcpreactor/internal/tcpconn"
	"github.com/reactorcore/tcpreactor/internal/workerpool"
)

// Handler is the user-supplied set of lifecycle hooks, matching the
// reference EventHandler's OnOpen/OnTrack/OnClose shape under this
// specification's own vocabulary. OnMessage returns needMore=true when
// the protocol has not yet seen a complete request and read interest
// should stay enabled; returning false means OnMessage has queued a
// response via conn.QueueOutbound and the channel should switch to write
// interest (§4.6's read-ready handler).
type Handler interface {
	OnNewConnection(conn *tcpconn.Conn)
	OnMessage(conn *tcpconn.Conn) (needMore bool)
	OnClose(conn *tcpconn.Conn)
}

// ServerOption customizes a Server at construction, matching the
// reference codebase's trailing variadic-options convention
// (gkhttp.NewHttpServer(handler, opts ...*Opts)), expressed here as
// functional options.
type ServerOption func(*Server)

// WithWorkerPool substitutes a custom WorkerPool collaborator, e.g. for
// tests. Without this option, New builds an ants/v2-backed pool sized
// from cfg.NumWorkers.
func WithWorkerPool(p workerpool.Pool) ServerOption {
	return func(s *Server) { s.pool = p }
}

// WithLogger substitutes the logging facade, e.g. logging.Capturing in
// tests.
func WithLogger(l logging.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// Server owns exactly one EventLoop, one WorkerPool, the listening socket
// and the connection table. It never constructs a balancer — per
// SPEC_FULL.md §9, multi-loop load-balancing is out of scope.
type Server struct {
	cfg     *config.Config
	handler Handler
	pool    workerpool.Pool
	log     logging.Logger

	loop     *eventloop.EventLoop
	listener *sockets.Listener

	mu    sync.RWMutex
	conns map[int]*tcpconn.Conn
}

// New constructs a Server. cfg may be nil, in which case config.Default()
// is used.
func New(cfg *config.Config, handler Handler, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		log:     logging.Default,
		conns:   make(map[int]*tcpconn.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.pool == nil {
		pool, err := workerpool.New(cfg.NumWorkers)
		if err != nil {
			return nil, fmt.Errorf("server: worker pool: %w", err)
		}
		s.pool = pool
	}

	loop, err := eventloop.New(cfg.DefaultPollInterval)
	if err != nil {
		return nil, fmt.Errorf("server: event loop: %w", err)
	}
	s.loop = loop
	return s, nil
}

// ListenAndServe binds the listening socket, registers its Channel and
// runs the event loop, blocking until Shutdown/Stop is called or Run
// returns an error (§4.6 "on start").
func (s *Server) ListenAndServe() error {
	addr, err := sockets.ResolveTCPAddress(s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: resolve listen address: %w", err)
	}
	ln, err := sockets.CreateNonBlockingSocket(addr, s.cfg.ReuseAddr, s.cfg.ReusePort, s.cfg.AcceptBacklog)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	ch := channel.New(ln.GetFd(), s.loop, true)
	ch.SetReadCallback(s.handleAccept)
	ch.EnableReading()
	if err := s.loop.AddChannel(ch); err != nil {
		_ = ln.Close()
		return fmt.Errorf("server: register listener channel: %w", err)
	}

	s.log.Infof("server: listening on %s", addr)
	return s.loop.Run()
}

// Shutdown closes every live connection and stops the event loop. It may
// be called from any goroutine.
func (s *Server) Shutdown() {
	s.loop.RunInLoop(func() {
		s.mu.RLock()
		ids := make([]int, 0, len(s.conns))
		for id := range s.conns {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
		for _, id := range ids {
			s.handleClose(weakConn{server: s, id: id})
		}
	})
	s.loop.Stop()
}

// Close releases the listener, worker pool and event loop descriptors.
// Call only after ListenAndServe has returned.
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.pool != nil {
		s.pool.Release()
	}
	if e := s.loop.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

// ConnCount reports the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) lookup(id int) (*tcpconn.Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

// handleAccept drains the listening socket's backlog until AGAIN,
// per §4.6's accept path. It runs on the loop goroutine.
func (s *Server) handleAccept() {
	for {
		nfd, remote, outcome, err := s.listener.Accept()
		switch outcome {
		case sockets.OutcomeAgain:
			return
		case sockets.OutcomeError:
			if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
				s.log.Warnf("server: %v: %v", errs.ErrAcceptExhausted, err)
			} else {
				s.log.Warnf("server: accept failed: %v", err)
			}
			return
		}
		s.acceptOne(nfd, remote)
	}
}

func (s *Server) acceptOne(fd int, remote sockets.Address) {
	if err := sockets.SetNoDelay(fd, true); err != nil {
		s.log.Warnf("server: setnodelay failed for fd=%d: %v", fd, err)
	}
	if err := sockets.EnableKeepAlive(fd, 0); err != nil {
		s.log.Warnf("server: keepalive failed for fd=%d: %v", fd, err)
	}

	conn := tcpconn.New(fd, s.listener.Addr(), remote, true)
	weak := weakConn{server: s, id: conn.ID()}

	ch := channel.New(fd, s.loop, false)
	ch.SetDisconnectedCheck(func() bool {
		c, ok := s.lookup(weak.id)
		return !ok || c.IsDisconnected()
	})
	ch.SetReadCallback(func() { s.handleReadReady(weak) })
	ch.SetWriteCallback(func() { s.handleWriteReady(weak) })
	ch.SetCloseCallback(func() { s.handleClose(weak) })
	ch.EnableReading()
	conn.SetChannel(ch)

	s.mu.Lock()
	s.conns[conn.ID()] = conn
	s.mu.Unlock()

	if err := s.loop.AddChannel(ch); err != nil {
		s.log.Warnf("server: register channel failed for fd=%d: %v", fd, err)
		s.mu.Lock()
		delete(s.conns, conn.ID())
		s.mu.Unlock()
		_ = conn.Close()
		return
	}

	deadline := time.Now().Add(s.cfg.IdleTimeout)
	onIdle := func() { s.handleIdleTimeout(weak) }
	if err := s.loop.AddTimer(conn.ID(), deadline, onIdle); err != nil {
		s.log.Warnf("server: add timer failed for conn=%d, adjusting instead: %v", conn.ID(), err)
		_ = s.loop.AdjustTimer(conn.ID(), deadline, onIdle)
	}

	if s.handler != nil {
		s.handler.OnNewConnection(conn)
	}
}

// handleReadReady is a connection channel's read callback (§4.6).
func (s *Server) handleReadReady(w weakConn) {
	conn, ok := w.Upgrade()
	if !ok || conn.IsDisconnected() {
		return
	}
	s.resetIdleTimer(w)

	ch := conn.Channel()
	ch.DisableReading()
	_ = s.loop.ModChannel(ch)

	if err := s.pool.Submit(func() { s.doRead(w) }); err != nil {
		s.log.Warnf("server: read task rejected for conn=%d: %v", conn.ID(), err)
		s.restoreInterest(w, channel.EventRead)
	}
}

func (s *Server) doRead(w weakConn) {
	conn, ok := w.Upgrade()
	if !ok || conn.IsDisconnected() {
		return
	}

	outcome, err := conn.Recv()
	switch outcome {
	case sockets.OutcomeClosed, sockets.OutcomeError:
		if err != nil {
			s.log.Warnf("server: recv failed for conn=%d: %v", conn.ID(), err)
		}
		s.triggerClose(w)
		return
	case sockets.OutcomeAgain:
		s.restoreInterest(w, channel.EventRead)
		return
	}

	needMore := true
	if s.handler != nil {
		needMore = s.handler.OnMessage(conn)
	}
	if needMore {
		s.restoreInterest(w, channel.EventRead)
	} else {
		s.restoreInterest(w, channel.EventWrite)
	}
}

// handleWriteReady is a connection channel's write callback (§4.6).
func (s *Server) handleWriteReady(w weakConn) {
	conn, ok := w.Upgrade()
	if !ok || conn.IsDisconnected() {
		return
	}
	s.resetIdleTimer(w)

	ch := conn.Channel()
	ch.DisableWriting()
	_ = s.loop.ModChannel(ch)

	if err := s.pool.Submit(func() { s.doWrite(w) }); err != nil {
		s.log.Warnf("server: write task rejected for conn=%d: %v", conn.ID(), err)
		s.restoreInterest(w, channel.EventWrite)
	}
}

func (s *Server) doWrite(w weakConn) {
	conn, ok := w.Upgrade()
	if !ok || conn.IsDisconnected() {
		return
	}

	outcome, err := conn.Send()
	switch outcome {
	case sockets.OutcomeClosed, sockets.OutcomeError:
		if err != nil {
			s.log.Warnf("server: send failed for conn=%d: %v", conn.ID(), err)
		}
		s.triggerClose(w)
	case sockets.OutcomeAgain:
		s.restoreInterest(w, channel.EventWrite)
	case sockets.OutcomeCompleted:
		if conn.KeepAlive() {
			s.restoreInterest(w, channel.EventRead)
		} else {
			s.triggerClose(w)
		}
	}
}

// restoreInterest re-enables interest on a connection's channel and
// pushes the change to the Poller, trampolined onto the loop goroutine.
// This is the completion half of the at-most-one-in-flight policy: the
// read-ready/write-ready handler cleared interest before dispatching the
// worker task; the worker's completion path re-enables exactly one of
// read or write once it is done mutating the connection.
func (s *Server) restoreInterest(w weakConn, ev channel.EventMask) {
	s.loop.RunInLoop(func() {
		conn, ok := w.Upgrade()
		if !ok || conn.IsDisconnected() {
			return
		}
		ch := conn.Channel()
		ch.SetEvents(ev)
		_ = s.loop.ModChannel(ch)
	})
}

func (s *Server) resetIdleTimer(w weakConn) {
	deadline := time.Now().Add(s.cfg.IdleTimeout)
	_ = s.loop.AdjustTimer(w.id, deadline, nil)
}

func (s *Server) triggerClose(w weakConn) {
	s.loop.RunInLoop(func() { s.handleClose(w) })
}

func (s *Server) handleIdleTimeout(w weakConn) {
	s.handleClose(w)
}

// handleClose is the close handler (§4.6). It always runs on the loop
// goroutine, either because Channel.Dispatch called it directly or
// because a worker trampolined through RunInLoop. Idempotent: a
// connection already in Closing/Destroyed is a no-op.
//
// conn.Close releases the fd and buffers unconditionally; see its doc
// comment for the narrow race this leaves against a worker still inside
// Recv/Send for this id.
func (s *Server) handleClose(w weakConn) {
	conn, ok := w.Upgrade()
	if !ok || conn.IsDisconnected() {
		return
	}
	conn.MarkDisconnected()

	if s.handler != nil {
		s.handler.OnClose(conn)
	}

	_ = s.loop.DelChannel(conn.Channel())
	_ = s.loop.DelTimer(conn.ID())

	s.mu.Lock()
	delete(s.conns, conn.ID())
	s.mu.Unlock()

	if err := conn.Close(); err != nil {
		s.log.Warnf("server: close fd=%d: %v", conn.Fd(), err)
	}
}
