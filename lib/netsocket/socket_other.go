//go:build !linux

package netsocket

import (
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/pkg/errors"
	"net/netip"
	"runtime"
)

var errPlatform = errors.Wrapf(ErrUnsupported, "platform %s", runtime.GOOS)

func sysStartup() error { return errPlatform }

func sysCleanup() error { return nil }

func sysSocket(SocketType, Protocol) (int, error) { return invalidFD, errPlatform }

func sysBind(int, netip.AddrPort) error { return errPlatform }

func sysListen(int) error { return errPlatform }

func sysAccept(int) (int, error) { return invalidFD, errPlatform }

func sysConnect(int, netip.AddrPort) error { return errPlatform }

func sysSend(int, []byte) (int, error) { return 0, errPlatform }

func sysRecv(int, []byte) (int, error) { return 0, errPlatform }

func sysShutdown(int) error { return errPlatform }

func sysClose(int) error { return errPlatform }

func sysLocalAddr(int) (netip.AddrPort, error) { return netip.AddrPort{}, errPlatform }

func sysRemoteAddr(int) (netip.AddrPort, error) { return netip.AddrPort{}, errPlatform }

func sysConfigure(int, Protocol, common.SocketConf) error { return errPlatform }
