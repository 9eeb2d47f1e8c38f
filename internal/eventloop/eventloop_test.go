package eventloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLoop(t *testing.T) (*EventLoop, <-chan error) {
	l, err := New(50 * time.Millisecond)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.Run() }()
	t.Cleanup(func() {
		l.Stop()
		<-done
		_ = l.Close()
	})
	return l, done
}

func TestRunInLoopFromOutsideExecutesOnLoopGoroutine(t *testing.T) {
	l, _ := runLoop(t)

	var wg sync.WaitGroup
	wg.Add(1)
	var sawAssertPanic bool
	l.RunInLoop(func() {
		defer wg.Done()
		func() {
			defer func() {
				if recover() != nil {
					sawAssertPanic = true
				}
			}()
			l.AssertLoopGoroutine()
		}()
	})
	wg.Wait()

	assert.False(t, sawAssertPanic, "a task run via RunInLoop must execute on the loop goroutine")
}

func TestRunInLoopRunsImmediatelyWhenAlreadyOnLoop(t *testing.T) {
	l, _ := runLoop(t)

	var wg sync.WaitGroup
	wg.Add(1)
	l.RunInLoop(func() {
		nested := false
		l.RunInLoop(func() { nested = true })
		assert.True(t, nested, "RunInLoop from the loop goroutine must run synchronously")
		wg.Done()
	})
	wg.Wait()
}

func TestStopTerminatesRun(t *testing.T) {
	l, err := New(time.Second)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	l.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not cause Run to return promptly")
	}
	_ = l.Close()
}

func TestAddTimerFiresCallbackOnLoopGoroutine(t *testing.T) {
	l, _ := runLoop(t)

	fired := make(chan struct{})
	require.NoError(t, l.AddTimer(1, time.Now().Add(10*time.Millisecond), func() {
		close(fired)
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer callback never fired")
	}
}
