package netsocket

import (
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"net/netip"
	"sync"
)

var Logger = logger.GetLogger("netsocket")

const invalidFD = -1

// DisconnectHandler is called once when a connected socket becomes
// disconnected, either by Close or by a failed send/receive
type DisconnectHandler func(s *Socket)

// Socket is a blocking socket with full-transfer send and receive.
//
// Connect, Send, Receive and Accept may block for as long as the peer does
// not cooperate. Close can be called from another goroutine to interrupt
// them, Shutdown interrupts transfers and accepts. The descriptor itself is only released once no syscall
// on it is in flight.
type Socket struct {
	kind   SocketType
	family AddressFamily
	proto  Protocol

	mu           sync.Mutex
	fd           int
	state        State
	listening    bool
	notified     bool
	onDisconnect DisconnectHandler

	// ioMu is read-locked for the duration of every blocking syscall on fd
	// and write-locked by Close before the descriptor is released
	ioMu sync.RWMutex
}

// newSocket allocates a new OS socket
func newSocket(kind SocketType, family AddressFamily, proto Protocol) (*Socket, error) {
	if family != IPv4 {
		return nil, failed("create", errors.Wrapf(ErrUnsupported, "address family %s", family))
	}

	fd, err := sysSocket(kind, proto)
	if err != nil {
		return nil, failed("create", errors.Wrapf(err, "%s/%s socket", kind, proto))
	}

	Logger.Debugf("created %s/%s socket (fd %d)", kind, proto, fd)

	return &Socket{
		kind:   kind,
		family: family,
		proto:  proto,
		fd:     fd,
		state:  StateCreated,
	}, nil
}

// newConnectedSocket wraps a descriptor returned by accept
func newConnectedSocket(fd int, kind SocketType, family AddressFamily, proto Protocol) *Socket {
	return &Socket{
		kind:   kind,
		family: family,
		proto:  proto,
		fd:     fd,
		state:  StateConnected,
	}
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// State returns the current lifecycle state
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected returns true if the socket can send and receive
func (s *Socket) IsConnected() bool {
	return s.State() == StateConnected
}

// IsValid returns true if the socket holds a usable descriptor
func (s *Socket) IsValid() bool {
	state := s.State()
	return state == StateCreated || state == StateConnected
}

// SetOnDisconnect registers the handler that is called when the socket disconnects.
// It replaces a previously registered handler.
func (s *Socket) SetOnDisconnect(handler DisconnectHandler) {
	s.mu.Lock()
	s.onDisconnect = handler
	s.mu.Unlock()
}

// LocalAddr returns the local address the socket is bound to
func (s *Socket) LocalAddr() (addr netip.AddrPort, err error) {
	err = s.withDescriptor("local address", func(fd int) error {
		addr, err = sysLocalAddr(fd)
		return err
	})
	return addr, err
}

// RemoteAddr returns the address of the connected peer
func (s *Socket) RemoteAddr() (addr netip.AddrPort, err error) {
	err = s.withDescriptor("remote address", func(fd int) error {
		addr, err = sysRemoteAddr(fd)
		return err
	})
	return addr, err
}

// --------------------------------------------------------------------------
// Server side
// --------------------------------------------------------------------------

// Bind resolves address and port (a number or a service name) and binds the socket to it
func (s *Socket) Bind(address, port string) error {
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()

	fd, err := s.expect("bind", StateCreated)
	if err != nil {
		return err
	}

	addr, err := resolveIPv4(address, port, s.proto)
	if err != nil {
		s.invalidate()
		return failed("bind", err)
	}

	if err := sysBind(fd, addr); err != nil {
		s.invalidate()
		return socketError("bind", errors.Wrapf(err, "bind %s", addr))
	}

	Logger.Debugf("bound fd %d to %s", fd, addr)
	return nil
}

// Listen marks the socket as passive socket accepting connections
func (s *Socket) Listen() error {
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()

	fd, err := s.expect("listen", StateCreated)
	if err != nil {
		return err
	}

	if err := sysListen(fd); err != nil {
		return socketError("listen", err)
	}

	s.mu.Lock()
	s.listening = true
	s.mu.Unlock()
	return nil
}

// Accept waits for the next incoming connection and returns it as connected
// socket. On failure no socket is returned; the listening socket stays usable.
func (s *Socket) Accept() (*Socket, error) {
	s.ioMu.RLock()
	fd, err := s.expect("accept", StateCreated)
	if err != nil {
		s.ioMu.RUnlock()
		return nil, err
	}
	s.mu.Lock()
	listening := s.listening
	s.mu.Unlock()
	if !listening {
		s.ioMu.RUnlock()
		return nil, failed("accept", errors.New("socket is not listening"))
	}
	nfd, err := sysAccept(fd)
	s.ioMu.RUnlock()

	if err != nil {
		return nil, socketError("accept", err)
	}

	accepted := newConnectedSocket(nfd, s.kind, s.family, s.proto)
	Logger.Debugf("accepted connection on fd %d (listener fd %d)", nfd, fd)
	return accepted, nil
}

// --------------------------------------------------------------------------
// Client side
// --------------------------------------------------------------------------

// Connect resolves address and port and connects the socket. If the
// connection fails the socket becomes invalid and must be recreated.
func (s *Socket) Connect(address, port string) error {
	addr, err := resolveIPv4(address, port, s.proto)
	if err != nil {
		s.invalidate()
		return failed("connect", err)
	}

	s.ioMu.RLock()
	fd, err := s.expect("connect", StateCreated)
	if err != nil {
		s.ioMu.RUnlock()
		return err
	}
	err = sysConnect(fd, addr)
	s.ioMu.RUnlock()

	if err != nil {
		s.invalidate()
		return socketError("connect", errors.Wrapf(err, "connect %s", addr))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated {
		// closed while connecting
		return socketError("connect", errors.Errorf("socket is %s", s.state))
	}
	s.state = StateConnected
	Logger.Debugf("fd %d connected to %s", fd, addr)
	return nil
}

// --------------------------------------------------------------------------
// Data transfer
// --------------------------------------------------------------------------

// Send writes all of b to the socket. Partial writes are retried until every
// byte is written. Any error terminates the connection.
func (s *Socket) Send(b []byte) error {
	s.ioMu.RLock()
	fd, err := s.expect("send", StateConnected)
	if err != nil {
		s.ioMu.RUnlock()
		return err
	}

	var ioErr error
	for sent := 0; sent < len(b); {
		n, err := sysSend(fd, b[sent:])
		if err != nil {
			ioErr = err
			break
		}
		if n == 0 {
			ioErr = ErrZeroWrite
			break
		}
		sent += n
	}
	s.ioMu.RUnlock()

	if ioErr != nil {
		s.terminate()
		return socketError("send", ioErr)
	}
	return nil
}

// Receive fills all of b from the socket. Any error, including the peer
// closing the connection, terminates the connection.
func (s *Socket) Receive(b []byte) error {
	s.ioMu.RLock()
	fd, err := s.expect("receive", StateConnected)
	if err != nil {
		s.ioMu.RUnlock()
		return err
	}

	var ioErr error
	for received := 0; received < len(b); {
		n, err := sysRecv(fd, b[received:])
		if err != nil {
			ioErr = err
			break
		}
		if n == 0 {
			ioErr = ErrPeerClosed
			break
		}
		received += n
	}
	s.ioMu.RUnlock()

	if ioErr != nil {
		s.terminate()
		return socketError("receive", ioErr)
	}
	return nil
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// Shutdown disables both directions of the connection without releasing the
// descriptor. Blocked calls on the socket return.
func (s *Socket) Shutdown() error {
	return s.withDescriptor("shutdown", func(fd int) error {
		if err := sysShutdown(fd); err != nil {
			return socketError("shutdown", err)
		}
		return nil
	})
}

// Close releases the descriptor. Calling Close on a closed socket is a no-op.
// The disconnect handler is called if the socket was connected.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.state == StateClosed || s.fd == invalidFD {
		s.state = StateClosed
		s.mu.Unlock()
		return nil
	}
	fd := s.fd
	wasConnected := s.state == StateConnected
	s.state = StateClosed
	s.mu.Unlock()

	// wake up blocked syscalls (accept, connect, send, receive), then wait for
	// them before the fd number can be reused
	_ = sysShutdown(fd)
	s.ioMu.Lock()
	err := sysClose(fd)
	s.mu.Lock()
	s.fd = invalidFD
	s.mu.Unlock()
	s.ioMu.Unlock()

	Logger.Debugf("closed fd %d", fd)

	if wasConnected {
		s.notifyDisconnect()
	}

	if err != nil {
		return socketError("close", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// expect returns the descriptor if the socket is in the wanted state
func (s *Socket) expect(op string, want State) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != want {
		if s.state == StateConnected || s.state == StateCreated {
			return invalidFD, failed(op, errors.Errorf("socket is %s, expected %s", s.state, want))
		}
		return invalidFD, socketError(op, errors.Errorf("socket is %s", s.state))
	}
	return s.fd, nil
}

// withDescriptor runs fn with the descriptor of a socket that still holds one.
// The descriptor cannot be released while fn runs.
func (s *Socket) withDescriptor(op string, fn func(fd int) error) error {
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()

	s.mu.Lock()
	fd, state := s.fd, s.state
	s.mu.Unlock()

	if fd == invalidFD || state == StateClosed {
		return socketError(op, errors.New("socket is closed"))
	}
	return fn(fd)
}

// invalidate marks a not yet connected socket as unusable
func (s *Socket) invalidate() {
	s.mu.Lock()
	if s.state == StateCreated {
		s.state = StateInvalid
	}
	s.mu.Unlock()
}

// terminate handles a failed transfer: the connection is shut down, marked
// invalid and the disconnect handler is notified
func (s *Socket) terminate() {
	s.ioMu.RLock()
	s.mu.Lock()
	wasConnected := s.state == StateConnected
	if wasConnected {
		s.state = StateInvalid
	}
	fd := s.fd
	s.mu.Unlock()
	if wasConnected && fd != invalidFD {
		_ = sysShutdown(fd)
	}
	s.ioMu.RUnlock()

	if !wasConnected {
		return
	}

	Logger.Debugf("connection on fd %d terminated", fd)
	s.notifyDisconnect()
}

// notifyDisconnect calls the disconnect handler at most once per socket
func (s *Socket) notifyDisconnect() {
	s.mu.Lock()
	if s.notified {
		s.mu.Unlock()
		return
	}
	s.notified = true
	handler := s.onDisconnect
	s.mu.Unlock()

	if handler != nil {
		handler(s)
	}
}

// Configure applies the OS level options of conf to the socket
func (s *Socket) Configure(conf common.SocketConf) error {
	return s.withDescriptor("configure", func(fd int) error {
		if err := sysConfigure(fd, s.proto, conf); err != nil {
			return failed("configure", err)
		}
		return nil
	})
}
