//go:build linux

package poller

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// NewTimerFD creates the kernel timer descriptor the TimerQueue arms to
// the top-of-heap deadline (§4.3, §6 "a kernel timer descriptor that
// becomes readable when a programmed absolute time is reached").
func NewTimerFD() (int, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return -1, os.NewSyscallError("timerfd_create", err)
	}
	return fd, nil
}

// ArmTimerFD programs fd to fire once after d (one-shot, not periodic,
// per §4.3's arming policy). d <= 0 arms the minimum representable
// interval so an already-due timer still fires promptly instead of being
// silently disarmed by a zero Value.
func ArmTimerFD(fd int, d time.Duration) error {
	if d <= 0 {
		d = time.Nanosecond
	}
	spec := unix.ItimerSpec{
		Value:    unix.NsecToTimespec(d.Nanoseconds()),
		Interval: unix.Timespec{},
	}
	return os.NewSyscallError("timerfd_settime", unix.TimerfdSettime(fd, 0, &spec, nil))
}

// DisarmTimerFD clears any pending expiration.
func DisarmTimerFD(fd int) error {
	var spec unix.ItimerSpec
	return os.NewSyscallError("timerfd_settime", unix.TimerfdSettime(fd, 0, &spec, nil))
}

// DrainTimerFD consumes the expiration counter after the timerfd becomes
// readable, as required before rearming.
func DrainTimerFD(fd int) (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err == unix.EAGAIN {
		return 0, nil
	}
	if err != nil {
		return 0, os.NewSyscallError("timerfd_read", err)
	}
	if n != 8 {
		return 0, nil
	}
	return hostUint64(buf), nil
}

func hostUint64(b [8]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
