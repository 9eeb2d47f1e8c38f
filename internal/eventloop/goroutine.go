package eventloop

import (
	"runtime"
	"strconv"
	"strings"
)

// goroutineID extracts the calling goroutine's numeric id from its stack
// trace header ("goroutine 123 [running]: ..."). It backs
// EventLoop.AssertLoopGoroutine's runtime check that operations requiring
// the loop's single-goroutine confinement (§5) are not called from the
// wrong goroutine. The reference reactor enforces this only by convention
// (runtime.LockOSThread pins the OS thread but never checks caller
// identity); nothing in the retrieval corpus addresses goroutine-identity
// assertions, so this is one of the few places this repository reaches
// past the corpus's own libraries — justified in DESIGN.md.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := string(buf[:n])
	line = strings.TrimPrefix(line, "goroutine ")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return -1
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return -1
	}
	return id
}
