package balancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLoop struct{ count int32 }

func (l *fakeLoop) ConnCount() int32 { return l.count }

func TestRoundRobinCyclesInRegistrationOrder(t *testing.T) {
	b := &RoundRobin{}
	a, c := &fakeLoop{}, &fakeLoop{}
	b.Register(a)
	b.Register(c)

	assert.Same(t, a, b.Next())
	assert.Same(t, c, b.Next())
	assert.Same(t, a, b.Next(), "RoundRobin must wrap back to the first registered loop")
}

func TestLeastConnPicksFewestConnections(t *testing.T) {
	b := &LeastConn{}
	busy := &fakeLoop{count: 5}
	idle := &fakeLoop{count: 1}
	b.Register(busy)
	b.Register(idle)

	assert.Same(t, idle, b.Next())
}

func TestIteratorStopsEarly(t *testing.T) {
	b := &RoundRobin{}
	b.Register(&fakeLoop{})
	b.Register(&fakeLoop{})
	b.Register(&fakeLoop{})

	seen := 0
	b.Iterator(func(index int, loop Loop) bool {
		seen++
		return index < 1
	})
	assert.Equal(t, 2, seen, "iterator must stop as soon as the callback returns false")
}

func TestLenReflectsRegisteredLoops(t *testing.T) {
	b := &LeastConn{}
	assert.Equal(t, 0, b.Len())
	b.Register(&fakeLoop{})
	assert.Equal(t, 1, b.Len())
}
