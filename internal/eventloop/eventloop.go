// Package eventloop implements the reactor's EventLoop (§4.4): the
// single-goroutine dispatch cycle binding one Poller, one TimerQueue and a
// cross-goroutine task queue drained through an eventfd wakeup channel.
//
// Grounded on the reference reactor's Eloop.ActivateMainLoop/ActivateSubLoop
// dispatch loops (eloop/eventloop.go) and poll.Poller.Start's
// poll-dispatch-repeat structure (poll/poll.go), generalized from a
// callback-per-fd map to Channel.Dispatch, and extended with the
// RunInLoop trampoline and timer-channel integration the reference
// reactor's single-purpose accept/conn loop never needed.
package eventloop

import (
	"sync/atomic"
	"time"

	"github.com/reactorcore/tcpreactor/internal/channel"
	"github.com/reactorcore/tcpreactor/internal/errs"
	"github.com/reactorcore/tcpreactor/internal/logging"
	"github.com/reactorcore/tcpreactor/internal/poller"
	"github.com/reactorcore/tcpreactor/internal/sockets"
	"github.com/reactorcore/tcpreactor/internal/taskqueue"
	"github.com/reactorcore/tcpreactor/internal/timer"
)

// EventLoop owns a Poller, a TimerQueue, a wakeup Channel and the registry
// of Channels currently dispatched through it (§3, §4.4).
type EventLoop struct {
	poller *poller.Poller
	timers *timer.TimerQueue

	timerFd       int
	wakeupFd      int
	timerChannel  *channel.Channel
	wakeupChannel *channel.Channel

	channels map[int]*channel.Channel

	defaultPollInterval time.Duration

	tasks *taskqueue.Queue

	loopGID  atomic.Int64
	stopping atomic.Bool

	log logging.Logger
}

// New constructs an EventLoop. defaultPollInterval bounds how long a single
// Poller.Poll call may block when no timer is pending, per §4.4 step 1.
func New(defaultPollInterval time.Duration) (*EventLoop, error) {
	p, err := poller.New()
	if err != nil {
		return nil, err
	}
	timerFd, err := poller.NewTimerFD()
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	wakeupFd, err := poller.NewWakeupFD()
	if err != nil {
		_ = p.Close()
		_ = sockets.CloseFd(timerFd)
		return nil, err
	}

	l := &EventLoop{
		poller:              p,
		timerFd:             timerFd,
		wakeupFd:            wakeupFd,
		channels:            make(map[int]*channel.Channel),
		defaultPollInterval: defaultPollInterval,
		tasks:               taskqueue.New(),
		log:                 logging.Default,
	}
	l.timers = timer.New(timerFd)

	l.timerChannel = channel.New(timerFd, l, true)
	l.timerChannel.SetReadCallback(l.handleTimerReadable)
	l.timerChannel.EnableReading()

	l.wakeupChannel = channel.New(wakeupFd, l, true)
	l.wakeupChannel.SetReadCallback(l.handleWakeup)
	l.wakeupChannel.EnableReading()

	if err := l.addChannel(l.timerChannel); err != nil {
		_ = l.Close()
		return nil, err
	}
	if err := l.addChannel(l.wakeupChannel); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

// AssertLoopGoroutine implements channel.Owner. It panics if called from a
// goroutine other than the one currently executing Run, satisfying the
// invariant in §3 that channel callback mutation is confined to the loop
// goroutine. Before Run has been entered, every caller is treated as the
// loop goroutine so construction-time setup (registering the listening
// channel, priming timers) is unconstrained.
func (l *EventLoop) AssertLoopGoroutine() {
	if !l.isLoopGoroutine() {
		panic(errs.ErrNotLoopGoroutine)
	}
}

func (l *EventLoop) isLoopGoroutine() bool {
	gid := l.loopGID.Load()
	return gid == 0 || gid == goroutineID()
}

// Run executes the dispatch cycle described in §4.4 until Stop is called.
// It blocks the calling goroutine and must only ever be called from one
// goroutine for the lifetime of the EventLoop.
func (l *EventLoop) Run() error {
	l.loopGID.Store(goroutineID())
	defer l.loopGID.Store(0)

	for !l.stopping.Load() {
		timeoutMs := l.nextTimeoutMs()
		events, err := l.poller.Poll(timeoutMs)
		if err != nil {
			l.log.Errorf("eventloop: poll failed: %v", err)
			return err
		}
		for _, ev := range events {
			ev.Channel.Dispatch(ev.Ready)
		}
		l.runQueuedTasks()
	}
	return nil
}

// Stop requests that Run return after completing its current cycle,
// waking a blocked Poller.Poll immediately rather than waiting out the
// poll timeout.
func (l *EventLoop) Stop() {
	l.stopping.Store(true)
	l.wake()
}

// Close releases the loop's kernel descriptors. Call only after Run has
// returned.
func (l *EventLoop) Close() error {
	err := l.poller.Close()
	if e := sockets.CloseFd(l.timerFd); e != nil && err == nil {
		err = e
	}
	if e := sockets.CloseFd(l.wakeupFd); e != nil && err == nil {
		err = e
	}
	return err
}

// AddChannel registers ch with the Poller. Per §4.4, channel mutations
// must run on the loop goroutine; a call from any other goroutine is
// trampolined through RunInLoop.
func (l *EventLoop) AddChannel(ch *channel.Channel) error {
	if l.isLoopGoroutine() {
		return l.addChannel(ch)
	}
	l.RunInLoop(func() {
		if err := l.addChannel(ch); err != nil {
			l.log.Warnf("eventloop: deferred AddChannel failed: %v", err)
		}
	})
	return nil
}

// ModChannel pushes ch's current interest events to the Poller, trampolined
// the same way as AddChannel.
func (l *EventLoop) ModChannel(ch *channel.Channel) error {
	if l.isLoopGoroutine() {
		return l.modChannel(ch)
	}
	l.RunInLoop(func() {
		if err := l.modChannel(ch); err != nil {
			l.log.Warnf("eventloop: deferred ModChannel failed: %v", err)
		}
	})
	return nil
}

// DelChannel deregisters ch, trampolined the same way as AddChannel.
func (l *EventLoop) DelChannel(ch *channel.Channel) error {
	if l.isLoopGoroutine() {
		return l.delChannel(ch)
	}
	l.RunInLoop(func() {
		if err := l.delChannel(ch); err != nil {
			l.log.Warnf("eventloop: deferred DelChannel failed: %v", err)
		}
	})
	return nil
}

// AddTimer schedules a new deadline for id, trampolined onto the loop
// goroutine when called from a worker (§4.3, §4.4).
func (l *EventLoop) AddTimer(id int, expire time.Time, cb func()) error {
	if l.isLoopGoroutine() {
		return l.timers.Push(id, expire, cb)
	}
	l.RunInLoop(func() {
		if err := l.timers.Push(id, expire, cb); err != nil {
			l.log.Warnf("eventloop: deferred AddTimer failed: %v", err)
		}
	})
	return nil
}

// AdjustTimer reschedules id's deadline, trampolined like AddTimer.
func (l *EventLoop) AdjustTimer(id int, expire time.Time, cb func()) error {
	if l.isLoopGoroutine() {
		return l.timers.Adjust(id, expire, cb)
	}
	l.RunInLoop(func() {
		if err := l.timers.Adjust(id, expire, cb); err != nil {
			l.log.Warnf("eventloop: deferred AdjustTimer failed: %v", err)
		}
	})
	return nil
}

// DelTimer cancels id's deadline, trampolined like AddTimer.
func (l *EventLoop) DelTimer(id int) error {
	if l.isLoopGoroutine() {
		return l.timers.Remove(id)
	}
	l.RunInLoop(func() {
		if err := l.timers.Remove(id); err != nil {
			l.log.Warnf("eventloop: deferred DelTimer failed: %v", err)
		}
	})
	return nil
}

// RunInLoop runs task immediately if the calling goroutine is already the
// loop goroutine, or enqueues it to run at the end of the current/next
// dispatch cycle otherwise. Per §4.4's ordering guarantee, queued tasks run
// after every poller-derived dispatch in the cycle that drains them.
func (l *EventLoop) RunInLoop(task func()) {
	if l.isLoopGoroutine() {
		task()
		return
	}
	l.tasks.Push(task)
	l.wake()
}

func (l *EventLoop) runQueuedTasks() {
	for {
		task, ok := l.tasks.Pop()
		if !ok {
			return
		}
		task()
	}
}

func (l *EventLoop) wake() {
	if err := poller.Wake(l.wakeupFd); err != nil {
		l.log.Warnf("eventloop: wake failed: %v", err)
	}
}

func (l *EventLoop) handleWakeup() {
	if err := poller.DrainWakeup(l.wakeupFd); err != nil {
		l.log.Warnf("eventloop: drain wakeup failed: %v", err)
	}
}

func (l *EventLoop) handleTimerReadable() {
	if _, err := poller.DrainTimerFD(l.timerFd); err != nil {
		l.log.Warnf("eventloop: drain timerfd failed: %v", err)
		return
	}
	l.timers.ExpireDue(time.Now())
}

// nextTimeoutMs computes step 1 of §4.4: the smaller of the configured
// default interval and the time remaining until the next timer deadline,
// in epoll_wait's millisecond units.
func (l *EventLoop) nextTimeoutMs() int {
	timeout := l.defaultPollInterval
	if next, ok := l.timers.NextDeadline(); ok {
		if until := time.Until(next); until < timeout {
			timeout = until
		}
	}
	if timeout < 0 {
		timeout = 0
	}
	return int(timeout / time.Millisecond)
}

func (l *EventLoop) addChannel(ch *channel.Channel) error {
	if err := l.poller.Add(ch); err != nil {
		return err
	}
	l.channels[ch.Fd()] = ch
	return nil
}

func (l *EventLoop) modChannel(ch *channel.Channel) error {
	return l.poller.Modify(ch)
}

func (l *EventLoop) delChannel(ch *channel.Channel) error {
	delete(l.channels, ch.Fd())
	return l.poller.Remove(ch)
}
