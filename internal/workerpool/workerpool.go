// Package workerpool is the WorkerPool collaborator named in §6: a single
// Submit(task) operation with no ordering guarantee between tasks.
//
// Grounded on the reference reactor's use of github.com/panjf2000/ants/v2
// in moqsien-gknet/poll/poll.go (`that.Pool.Submit(func() { ... })`),
// wrapped in its own type purely to give the specification's collaborator
// a named Go interface the server can depend on instead of an *ants.Pool
// field buried in the poller.
package workerpool

import (
	"github.com/panjf2000/ants/v2"

	"github.com/reactorcore/tcpreactor/internal/logging"
)

// Pool submits zero-argument tasks to a bounded goroutine pool.
type Pool interface {
	Submit(task func()) error
	Running() int
	Release()
}

// antsPool adapts *ants.Pool to the Pool interface.
type antsPool struct {
	pool *ants.Pool
	log  logging.Logger
}

// New creates a Pool backed by ants.Pool with the given capacity. A
// non-positive size uses ants' own default pool size, matching the
// reference reactor's convention of leaving NumWorkers at its zero value
// when the caller wants ants to pick.
//
// The pool is always non-blocking: Submit is called synchronously from the
// loop goroutine (server.handleReadReady/handleWriteReady, dispatched from
// inside EventLoop.Run's poll loop), and per §5 that goroutine may only
// ever block inside Poller.Poll. A blocking pool would stall every other
// connection's read/write/accept/timer dispatch once NumWorkers is
// saturated, so a rejected Submit must fail fast instead.
func New(size int) (Pool, error) {
	if size <= 0 {
		size = ants.DefaultAntsPoolSize
	}
	p, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &antsPool{pool: p, log: logging.Default}, nil
}

func (a *antsPool) Submit(task func()) error {
	err := a.pool.Submit(task)
	if err != nil {
		a.log.Warnf("workerpool: submit rejected: %v", err)
	}
	return err
}

func (a *antsPool) Running() int { return a.pool.Running() }

func (a *antsPool) Release() { a.pool.Release() }
