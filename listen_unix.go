//go:build unix

package framesocket

import (
	"net"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// listenTCP binds addr with an explicit listen backlog. The standard library
// always uses the system maximum, so the socket is created by hand and then
// handed to the runtime poller through net.FileListener.
//
// As with net.ListenTCP, a nil addr means any interface and an ephemeral
// port, and an address without an IP listens on both IPv4 and IPv6 where
// the host supports it.
func listenTCP(addr *net.TCPAddr, backlog int) (*net.TCPListener, error) {
	if addr == nil {
		addr = &net.TCPAddr{}
	}
	if backlog <= 0 {
		return net.ListenTCP("tcp", addr)
	}

	fd, sa, err := socket(addr)
	if err != nil {
		return nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(os.NewSyscallError("setsockopt", err), "listen")
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(os.NewSyscallError("bind", err), "listen %s", addr)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(os.NewSyscallError("listen", err), "listen %s", addr)
	}

	file := os.NewFile(uintptr(fd), "tcp:"+addr.String())
	defer file.Close()

	ln, err := net.FileListener(file)
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, errors.Errorf("listen %s: unexpected listener type %T", addr, ln)
	}
	return tcpLn, nil
}

// socket opens a stream socket suited to addr. An address without an IP
// gets a dual-stack IPv6 socket, falling back to IPv4 when the host has
// no IPv6 support.
func socket(addr *net.TCPAddr) (int, unix.Sockaddr, error) {
	if len(addr.IP) == 0 {
		if addr.Port < 0 || addr.Port > 65535 {
			return -1, nil, errors.Errorf("listen: invalid port %d", addr.Port)
		}
		fd, err := openSocket(unix.AF_INET6)
		if err == nil {
			err = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
			if err == nil {
				return fd, &unix.SockaddrInet6{Port: addr.Port}, nil
			}
			unix.Close(fd)
		}
	}

	family, sa, err := sockaddr(addr)
	if err != nil {
		return -1, nil, err
	}
	fd, err := openSocket(family)
	if err != nil {
		return -1, nil, errors.Wrap(os.NewSyscallError("socket", err), "listen")
	}
	return fd, sa, nil
}

func openSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

// sockaddr converts addr into a socket family and address. A missing or
// unspecified IPv4 address binds all IPv4 interfaces.
func sockaddr(addr *net.TCPAddr) (int, unix.Sockaddr, error) {
	if addr.Port < 0 || addr.Port > 65535 {
		return 0, nil, errors.Errorf("listen: invalid port %d", addr.Port)
	}

	if addr.IP == nil || addr.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa, nil
	}

	ip6 := addr.IP.To16()
	if ip6 == nil {
		return 0, nil, errors.Errorf("listen: invalid address %s", addr.IP)
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip6)

	if addr.Zone != "" {
		zone, err := zoneIndex(addr.Zone)
		if err != nil {
			return 0, nil, err
		}
		sa.ZoneId = zone
	}
	return unix.AF_INET6, sa, nil
}

// zoneIndex resolves an IPv6 zone given as an interface name or index.
func zoneIndex(zone string) (uint32, error) {
	if ifi, err := net.InterfaceByName(zone); err == nil {
		return uint32(ifi.Index), nil
	}
	n, err := strconv.ParseUint(zone, 10, 32)
	if err != nil {
		return 0, errors.Errorf("listen: unknown zone %q", zone)
	}
	return uint32(n), nil
}
