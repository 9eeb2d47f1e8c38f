// Package poller implements the reactor's Poller abstraction (§4.2): a
// thin wrapper over the kernel readiness multiplexer that adds, modifies
// and removes Channels and blocks until one or more is ready.
//
// Grounded on the reference reactor's poll package (epoll_create1,
// EPOLL_CTL_ADD/MOD/DEL, epoll_wait in moqsien-gknet's sys/sys_poll_linux.go),
// generalized from raw "syscall" calls to golang.org/x/sys/unix and
// re-keyed on *channel.Channel instead of a raw fd so the Poller can hand
// back the Channel itself from Poll.
package poller

import (
	"fmt"

	"github.com/reactorcore/tcpreactor/internal/channel"
	"github.com/reactorcore/tcpreactor/internal/errs"
)

// Event is one (channel, ready-events) pair returned by Poll.
type Event struct {
	Channel *channel.Channel
	Ready   channel.EventMask
}

// Poller holds no ownership of the channels it tracks — only raw
// back-pointers keyed by descriptor, per §4.2. It is confined to the
// owning EventLoop's goroutine and therefore needs no internal
// synchronization (§5: "The Poller ... [is] confined to the loop
// goroutine — no locks").
type Poller struct {
	epfd     int
	channels map[int]*channel.Channel
}

// New creates a Poller backed by a fresh epoll instance.
func New() (*Poller, error) {
	epfd, err := newEpoll()
	if err != nil {
		return nil, err
	}
	return &Poller{epfd: epfd, channels: make(map[int]*channel.Channel)}, nil
}

// Add registers ch for its current interest events. Double-registration
// is a programming error per §7.
func (p *Poller) Add(ch *channel.Channel) error {
	if _, exists := p.channels[ch.Fd()]; exists {
		return fmt.Errorf("%w: fd=%d", errs.ErrChannelAlreadyRegistered, ch.Fd())
	}
	if err := epollAdd(p.epfd, ch.Fd(), ch.Events()); err != nil {
		return err
	}
	p.channels[ch.Fd()] = ch
	ch.MarkRegistered()
	return nil
}

// Modify pushes ch's current interest events to the kernel. Modifying an
// unregistered channel is a programming error per §7.
func (p *Poller) Modify(ch *channel.Channel) error {
	if _, exists := p.channels[ch.Fd()]; !exists {
		return fmt.Errorf("%w: fd=%d", errs.ErrChannelNotRegistered, ch.Fd())
	}
	return epollModify(p.epfd, ch.Fd(), ch.Events())
}

// Remove deregisters ch. Removal of an unknown channel is idempotent
// per §4.2.
func (p *Poller) Remove(ch *channel.Channel) error {
	if _, exists := p.channels[ch.Fd()]; !exists {
		return nil
	}
	delete(p.channels, ch.Fd())
	ch.MarkUnregistered()
	return epollDelete(p.epfd, ch.Fd())
}

// Poll blocks up to timeoutMs milliseconds (negative means block
// indefinitely) and returns the channels with non-empty readiness.
func (p *Poller) Poll(timeoutMs int) ([]Event, error) {
	raw, err := epollWait(p.epfd, timeoutMs)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		ch, ok := p.channels[r.fd]
		if !ok {
			continue
		}
		events = append(events, Event{Channel: ch, Ready: r.mask})
	}
	return events, nil
}

// Close releases the epoll descriptor.
func (p *Poller) Close() error {
	return closeEpoll(p.epfd)
}
