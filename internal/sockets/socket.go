// Package sockets is the Socket collaborator named in the
// specification's external interfaces: address parsing and the raw
// accept/bind/listen/recv/send syscalls the reactor core treats as an
// external, swappable dependency. It is adapted from the reference
// reactor's sys and socket packages, generalized from direct syscall
// calls to golang.org/x/sys/unix.
package sockets

import (
	"fmt"
	"net"
)

// Family distinguishes IPv4 from IPv6 listen addresses.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// Address carries family + IP + port, exactly the attributes the
// specification's Socket collaborator names for its address object.
type Address struct {
	Family Family
	IP     net.IP
	Port   int
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
}

// ResolveTCPAddress parses a "host:port" listen address into an Address,
// defaulting to IPv4 when the host part doesn't disambiguate.
func ResolveTCPAddress(addr string) (Address, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return Address{}, err
	}
	fam := FamilyIPv4
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		fam = FamilyIPv6
	}
	return Address{Family: fam, IP: tcpAddr.IP, Port: tcpAddr.Port}, nil
}

// IOOutcome is the shared result code of recv/send operations, per the
// specification's data model for TcpConnection's "last I/O outcome".
type IOOutcome int

const (
	OutcomeOK IOOutcome = iota
	OutcomeAgain
	OutcomeCompleted
	OutcomeClosed
	OutcomeError
)

func (o IOOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeAgain:
		return "AGAIN"
	case OutcomeCompleted:
		return "COMPLETED"
	case OutcomeClosed:
		return "CLOSED"
	case OutcomeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
