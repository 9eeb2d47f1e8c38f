//go:build linux

package poller

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// NewWakeupFD creates the eventfd-backed wakeup descriptor the EventLoop
// registers as a Channel so a worker goroutine's RunInLoop can interrupt
// a blocked Poller.Poll (§4.4, §6 "an atomic-counter descriptor that
// becomes readable when any worker posts to the loop").
func NewWakeupFD() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return -1, os.NewSyscallError("eventfd", err)
	}
	return fd, nil
}

// Wake increments the eventfd counter, making it readable.
func Wake(fd int) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		// Counter is already non-zero (a wake is already pending); that's
		// the intended coalescing behavior, not an error.
		return nil
	}
	return os.NewSyscallError("eventfd_write", err)
}

// DrainWakeup resets the eventfd counter to zero after a wakeup.
func DrainWakeup(fd int) error {
	var buf [8]byte
	_, err := unix.Read(fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return os.NewSyscallError("eventfd_read", err)
}
