// Package balancer adapts the reference reactor's multi-loop connection
// balancer strategies into this repository as an unwired extension point.
//
// §1's Non-goals exclude load-balancing across multiple reactor
// goroutines for this specification — the shipped server/Server always
// drives exactly one EventLoop and never constructs a Balancer. This
// package is kept, generalized to the repository's own types, so a future
// multi-loop server has a ready-made strategy to register against, per
// the "adapt, don't delete" rule for teacher code that has no home in the
// current spec scope. See DESIGN.md for the full justification.
//
// Grounded on the reference reactor's balancer/round_robin.go and
// balancer/least_conn.go (both built against its iface.IELoop).
package balancer

import "net"

// Loop is the minimal surface a Balancer needs from whatever runs a
// reactor goroutine: a live connection count, used by the least-loaded
// strategy. A future multi-loop server would satisfy this with its
// EventLoop-plus-connection-table wrapper.
type Loop interface {
	ConnCount() int32
}

// IterFunc lets a caller walk the registered loops in order, stopping
// early when it returns false.
type IterFunc func(index int, loop Loop) bool

// Balancer selects which registered Loop should own the next accepted
// connection.
type Balancer interface {
	Register(Loop)
	Next(addr ...net.Addr) Loop
	Iterator(IterFunc)
	Len() int
}

// RoundRobin cycles through registered loops in registration order.
type RoundRobin struct {
	loops     []Loop
	nextIndex int
}

func (b *RoundRobin) Len() int { return len(b.loops) }

func (b *RoundRobin) Iterator(f IterFunc) {
	for i, loop := range b.loops {
		if !f(i, loop) {
			break
		}
	}
}

func (b *RoundRobin) Register(l Loop) {
	b.loops = append(b.loops, l)
}

func (b *RoundRobin) Next(_ ...net.Addr) Loop {
	l := b.loops[b.nextIndex]
	b.nextIndex++
	if b.nextIndex >= len(b.loops) {
		b.nextIndex = 0
	}
	return l
}

// LeastConn always hands the next connection to whichever registered loop
// currently reports the fewest live connections.
type LeastConn struct {
	loops []Loop
}

func (b *LeastConn) Len() int { return len(b.loops) }

func (b *LeastConn) Iterator(f IterFunc) {
	for i, loop := range b.loops {
		if !f(i, loop) {
			break
		}
	}
}

func (b *LeastConn) Register(l Loop) {
	b.loops = append(b.loops, l)
}

func (b *LeastConn) Next(_ ...net.Addr) Loop {
	min := b.loops[0]
	for _, l := range b.loops {
		if l.ConnCount() < min.ConnCount() {
			min = l
		}
	}
	return min
}
