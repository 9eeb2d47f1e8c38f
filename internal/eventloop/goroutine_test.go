package eventloop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoroutineIDIsStableWithinOneGoroutine(t *testing.T) {
	a := goroutineID()
	b := goroutineID()
	assert.Equal(t, a, b)
}

func TestGoroutineIDDiffersAcrossGoroutines(t *testing.T) {
	main := goroutineID()

	var other int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = goroutineID()
	}()
	wg.Wait()

	assert.NotEqual(t, main, other)
}
