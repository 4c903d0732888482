//go:build linux

package netsocket

import (
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"net/netip"
)

// --------------------------------------------------------------------------
// Library lifecycle
// --------------------------------------------------------------------------

// the linux socket stack needs no process wide setup
func sysStartup() error { return nil }

func sysCleanup() error { return nil }

// --------------------------------------------------------------------------
// Descriptor operations
// --------------------------------------------------------------------------

func sysSocket(kind SocketType, proto Protocol) (int, error) {
	var sotype, protocol int

	switch kind {
	case Stream:
		sotype = unix.SOCK_STREAM
	case Raw:
		sotype = unix.SOCK_RAW
	default:
		return invalidFD, errors.Wrapf(ErrUnsupported, "socket type %s", kind)
	}

	switch proto {
	case TCP:
		protocol = unix.IPPROTO_TCP
	case UDP:
		protocol = unix.IPPROTO_UDP
	default:
		return invalidFD, errors.Wrapf(ErrUnsupported, "protocol %s", proto)
	}

	fd, err := unix.Socket(unix.AF_INET, sotype|unix.SOCK_CLOEXEC, protocol)
	if err != nil {
		return invalidFD, err
	}
	return fd, nil
}

func sysBind(fd int, addr netip.AddrPort) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return errors.Wrap(err, "set SO_REUSEADDR")
	}
	return unix.Bind(fd, toSockaddr(addr))
}

func sysListen(fd int) error {
	return unix.Listen(fd, unix.SOMAXCONN)
}

func sysAccept(fd int) (int, error) {
	for {
		nfd, _, err := unix.Accept4(fd, unix.SOCK_CLOEXEC)
		if err == unix.EINTR {
			continue
		}
		return nfd, err
	}
}

func sysConnect(fd int, addr netip.AddrPort) error {
	err := unix.Connect(fd, toSockaddr(addr))
	if err != unix.EINTR {
		return err
	}

	// an interrupted connect continues in the background, wait for its result
	for {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		break
	}
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

func sysSend(fd int, b []byte) (int, error) {
	for {
		// MSG_NOSIGNAL: a closed peer yields EPIPE instead of SIGPIPE
		n, err := unix.SendmsgN(fd, b, nil, nil, unix.MSG_NOSIGNAL)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func sysRecv(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func sysShutdown(fd int) error {
	err := unix.Shutdown(fd, unix.SHUT_RDWR)
	if err == unix.ENOTCONN {
		return nil
	}
	return err
}

func sysClose(fd int) error {
	return unix.Close(fd)
}

func sysLocalAddr(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return fromSockaddr(sa)
}

func sysRemoteAddr(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return fromSockaddr(sa)
}

// --------------------------------------------------------------------------
// Socket options
// --------------------------------------------------------------------------

// sysConfigure applies the socket options from conf, TCP options are only
// applied to TCP sockets
func sysConfigure(fd int, proto Protocol, conf common.SocketConf) error {
	if conf.WriteBufferSize > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, conf.WriteBufferSize); err != nil {
			return errors.Wrap(err, "set SO_SNDBUF")
		}
	}

	if conf.ReadBufferSize > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, conf.ReadBufferSize); err != nil {
			return errors.Wrap(err, "set SO_RCVBUF")
		}
	}

	if conf.TCPLingerSec >= 0 {
		linger := &unix.Linger{Onoff: 1, Linger: int32(conf.TCPLingerSec)}
		if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, linger); err != nil {
			return errors.Wrap(err, "set SO_LINGER")
		}
	}

	if proto != TCP {
		return nil
	}

	noDelay := 0
	if conf.TCPNoDelay {
		noDelay = 1
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, noDelay); err != nil {
		return errors.Wrap(err, "set TCP_NODELAY")
	}

	if conf.TCPKeepAliveSec > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return errors.Wrap(err, "set SO_KEEPALIVE")
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, conf.TCPKeepAliveSec); err != nil {
			return errors.Wrap(err, "set TCP_KEEPIDLE")
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, conf.TCPKeepAliveSec); err != nil {
			return errors.Wrap(err, "set TCP_KEEPINTVL")
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func toSockaddr(addr netip.AddrPort) *unix.SockaddrInet4 {
	return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: addr.Addr().As4()}
}

func fromSockaddr(sa unix.Sockaddr) (netip.AddrPort, error) {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return netip.AddrPort{}, errors.Wrapf(ErrUnsupported, "socket address %T", sa)
	}
	return netip.AddrPortFrom(netip.AddrFrom4(in4.Addr), uint16(in4.Port)), nil
}
