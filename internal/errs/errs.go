// Package errs collects the sentinel errors shared by the reactor core.
//
// Mirrors the flat var-block-of-sentinels shape of the reference
// reactor's utils/errs package, extended with the kinds this
// implementation's error taxonomy needs that the reference package
// didn't.
package errs

import "errors"

var (
	// ErrChannelAlreadyRegistered is returned by Poller.Add when the fd is
	// already tracked by the poller.
	ErrChannelAlreadyRegistered = errors.New("reactor: channel already registered")

	// ErrChannelNotRegistered is returned by Poller.Modify when the fd has
	// no existing registration. Poller.Remove on an unknown fd is
	// idempotent and does NOT return this error.
	ErrChannelNotRegistered = errors.New("reactor: channel not registered")

	// ErrDuplicateTimerID is returned by TimerQueue.Push when a timer for
	// the connection id already exists in the heap.
	ErrDuplicateTimerID = errors.New("reactor: duplicate timer id")

	// ErrAcceptExhausted signals that Accept returned EMFILE/ENFILE; the
	// backlog entry is left queued for the next cycle.
	ErrAcceptExhausted = errors.New("reactor: accept failed, descriptor table exhausted")

	// ErrNotLoopGoroutine guards operations that the spec requires to run
	// on the owning EventLoop goroutine.
	ErrNotLoopGoroutine = errors.New("reactor: operation must run on the loop goroutine")
)
