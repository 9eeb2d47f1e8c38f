//go:build linux

package sockets

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listener owns the listening socket's file descriptor. It is the
// non-owning fd's owner referenced by the specification's Channel
// invariant ("the owner is the containing Socket").
type Listener struct {
	fd   int
	addr Address
}

// CreateNonBlockingSocket creates, binds and starts listening on addr,
// applying address/port reuse as requested. Mirrors the reference
// socket.Listen + socket.keepalvie.go options path, generalized to
// x/sys/unix and parameterized instead of hardcoded.
func CreateNonBlockingSocket(addr Address, reuseAddr, reusePort bool, backlog int) (*Listener, error) {
	domain := unix.AF_INET
	if addr.Family == FamilyIPv6 {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if reuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return nil, os.NewSyscallError("setsockopt(SO_REUSEADDR)", err)
		}
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return nil, os.NewSyscallError("setsockopt(SO_REUSEPORT)", err)
		}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setnonblock", err)
	}

	if err := bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	return &Listener{fd: fd, addr: addr}, nil
}

func bind(fd int, addr Address) error {
	if addr.Family == FamilyIPv6 {
		var sa unix.SockaddrInet6
		sa.Port = addr.Port
		copy(sa.Addr[:], addr.IP.To16())
		return os.NewSyscallError("bind", unix.Bind(fd, &sa))
	}
	var sa unix.SockaddrInet4
	sa.Port = addr.Port
	ip := addr.IP.To4()
	if ip != nil {
		copy(sa.Addr[:], ip)
	}
	return os.NewSyscallError("bind", unix.Bind(fd, &sa))
}

// GetFd exposes the raw descriptor for Channel/Poller registration.
func (l *Listener) GetFd() int { return l.fd }

// Addr returns the bound local address.
func (l *Listener) Addr() Address { return l.addr }

// Accept drains one pending connection. It returns OutcomeAgain (with fd
// -1) when the backlog is empty, mirroring the edge-triggered-safe
// "loop until AGAIN" contract of §4.6's accept path.
func (l *Listener) Accept() (fd int, remote Address, outcome IOOutcome, err error) {
	nfd, sa, aerr := unix.Accept(l.fd)
	if aerr != nil {
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
			return -1, Address{}, OutcomeAgain, nil
		}
		if aerr == unix.EMFILE || aerr == unix.ENFILE {
			return -1, Address{}, OutcomeError, os.NewSyscallError("accept", aerr)
		}
		return -1, Address{}, OutcomeError, os.NewSyscallError("accept", aerr)
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, Address{}, OutcomeError, os.NewSyscallError("setnonblock", err)
	}
	return nfd, sockaddrToAddress(sa), OutcomeOK, nil
}

// Close releases the listening descriptor.
func (l *Listener) Close() error {
	return os.NewSyscallError("close", unix.Close(l.fd))
}

func sockaddrToAddress(sa unix.Sockaddr) Address {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return Address{Family: FamilyIPv4, IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return Address{Family: FamilyIPv6, IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return Address{}
	}
}

// SetNoDelay toggles TCP_NODELAY on a client socket.
func SetNoDelay(fd int, noDelay bool) error {
	v := 0
	if noDelay {
		v = 1
	}
	return os.NewSyscallError("setsockopt(TCP_NODELAY)", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v))
}

// EnableKeepAlive mirrors the reference socket.SetKeepAlive, generalized
// to x/sys/unix constants.
func EnableKeepAlive(fd int, intervalSecs int) error {
	if intervalSecs <= 0 {
		intervalSecs = 15
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return os.NewSyscallError("setsockopt(SO_KEEPALIVE)", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, intervalSecs); err != nil {
		return os.NewSyscallError("setsockopt(TCP_KEEPINTVL)", err)
	}
	return os.NewSyscallError("setsockopt(TCP_KEEPIDLE)", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, intervalSecs))
}

// Recv performs a single read into buf, returning the bytes-read count
// and the I/O outcome. The caller
// (TcpConnection.Recv) is responsible for the edge-triggered "loop until
// AGAIN" discipline across multiple Recv calls; this call performs one
// read(2).
func Recv(fd int, buf []byte) (n int, outcome IOOutcome, err error) {
	n, rerr := unix.Read(fd, buf)
	switch {
	case rerr == nil && n == 0:
		return 0, OutcomeClosed, nil
	case rerr == nil:
		return n, OutcomeOK, nil
	case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK:
		return 0, OutcomeAgain, nil
	case rerr == unix.ECONNRESET:
		return 0, OutcomeClosed, nil
	default:
		return 0, OutcomeError, os.NewSyscallError("read", rerr)
	}
}

// Send performs one write(2) of buf to fd, returning the number of bytes
// actually accepted by the kernel this call. Looping until AGAIN is the
// caller's job (TcpConnection.Send).
func Send(fd int, buf []byte) (n int, outcome IOOutcome, err error) {
	n, werr := unix.Write(fd, buf)
	switch {
	case werr == nil:
		return n, OutcomeOK, nil
	case werr == unix.EAGAIN || werr == unix.EWOULDBLOCK:
		return n, OutcomeAgain, nil
	case werr == unix.EPIPE || werr == unix.ECONNRESET:
		return n, OutcomeClosed, nil
	default:
		return n, OutcomeError, os.NewSyscallError("write", werr)
	}
}

// SendV writes a gather list of buffers to fd in one writev(2) call,
// mirroring the reference reactor's iovec-based Writev (built there on a
// raw SYS_WRITEV syscall; golang.org/x/sys/unix exposes the same
// operation directly).
func SendV(fd int, iovs [][]byte) (n int, outcome IOOutcome, err error) {
	n, werr := unix.Writev(fd, iovs)
	switch {
	case werr == nil:
		return n, OutcomeOK, nil
	case werr == unix.EAGAIN || werr == unix.EWOULDBLOCK:
		return n, OutcomeAgain, nil
	case werr == unix.EPIPE || werr == unix.ECONNRESET:
		return n, OutcomeClosed, nil
	default:
		return n, OutcomeError, os.NewSyscallError("writev", werr)
	}
}

// CloseFd closes a client connection's descriptor.
func CloseFd(fd int) error {
	return os.NewSyscallError("close", unix.Close(fd))
}
