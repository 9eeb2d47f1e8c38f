//go:build linux

package poller

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/reactorcore/tcpreactor/internal/channel"
)

type rawEvent struct {
	fd   int
	mask channel.EventMask
}

func newEpoll() (int, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return -1, os.NewSyscallError("epoll_create1", err)
	}
	return fd, nil
}

func toKernelEvents(ev channel.EventMask) uint32 {
	var out uint32
	if ev&channel.EventRead != 0 {
		out |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if ev&channel.EventWrite != 0 {
		out |= unix.EPOLLOUT
	}
	// Always watch for RDHUP so peer half-close is visible as a distinct
	// indication from a plain read-ready, matching §4.1's "hang-up or
	// peer-close indication without a read indication" rule.
	out |= unix.EPOLLRDHUP
	return out
}

func fromKernelEvents(kev uint32) channel.EventMask {
	var out channel.EventMask
	if kev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		out |= channel.EventRead
	}
	if kev&unix.EPOLLOUT != 0 {
		out |= channel.EventWrite
	}
	if kev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		out |= channel.EventHangup
	}
	if kev&unix.EPOLLERR != 0 {
		out |= channel.EventError
	}
	return out
}

func epollAdd(epfd, fd int, interest channel.EventMask) error {
	ev := unix.EpollEvent{Fd: int32(fd), Events: toKernelEvents(interest)}
	return os.NewSyscallError("epoll_ctl_add", unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev))
}

func epollModify(epfd, fd int, interest channel.EventMask) error {
	ev := unix.EpollEvent{Fd: int32(fd), Events: toKernelEvents(interest)}
	return os.NewSyscallError("epoll_ctl_mod", unix.EpollCtl(epfd, unix.EPOLL_CTL_MOD, fd, &ev))
}

func epollDelete(epfd, fd int) error {
	return os.NewSyscallError("epoll_ctl_del", unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil))
}

func epollWait(epfd, timeoutMs int) ([]rawEvent, error) {
	const maxEvents = 256
	var raw [maxEvents]unix.EpollEvent

	n, err := unix.EpollWait(epfd, raw[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, os.NewSyscallError("epoll_wait", err)
	}

	out := make([]rawEvent, n)
	for i := 0; i < n; i++ {
		out[i] = rawEvent{fd: int(raw[i].Fd), mask: fromKernelEvents(raw[i].Events)}
	}
	return out, nil
}

func closeEpoll(epfd int) error {
	return os.NewSyscallError("close", unix.Close(epfd))
}
