package netsocket

import (
	"fmt"
	"github.com/pkg/errors"
)

// --------------------------------------------------------------------------
// Socket parameters
// --------------------------------------------------------------------------

// SocketType selects the OS socket type
type SocketType int

const (
	Stream SocketType = iota
	Raw
)

func (t SocketType) String() string {
	switch t {
	case Stream:
		return "stream"
	case Raw:
		return "raw"
	default:
		return fmt.Sprintf("SocketType(%d)", int(t))
	}
}

// AddressFamily selects the OS address family. Only IPv4 can be used to
// create sockets.
type AddressFamily int

const (
	IPv4 AddressFamily = iota
	IPv6
)

func (f AddressFamily) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("AddressFamily(%d)", int(f))
	}
}

// Protocol selects the IP protocol of the socket
type Protocol int

const (
	TCP Protocol = iota
	UDP
)

func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// --------------------------------------------------------------------------
// Connection state
// --------------------------------------------------------------------------

// State is the lifecycle state of a Socket
type State int

const (
	// StateInvalid sockets hold no usable descriptor connection. A socket
	// becomes invalid after a failed bind/connect or an I/O failure and must
	// be closed and recreated.
	StateInvalid State = iota
	// StateCreated sockets own a descriptor but are not connected (this
	// includes bound and listening sockets)
	StateCreated
	// StateConnected sockets can send and receive
	StateConnected
	// StateClosed sockets released their descriptor
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// --------------------------------------------------------------------------
// Results and errors
// --------------------------------------------------------------------------

// Result is the outcome class of a socket operation
type Result int

const (
	Success Result = iota
	// Failed is a local or configuration error (e.g. address resolution)
	Failed
	// SocketError is an OS level I/O failure or a peer disconnect
	SocketError
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case SocketError:
		return "socket error"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

var (
	// ErrFailed matches every error of class Failed
	ErrFailed = errors.New("netsocket: operation failed")
	// ErrSocket matches every error of class SocketError
	ErrSocket = errors.New("netsocket: socket error")
	// ErrUnsupported is returned for socket parameters or platforms that are not supported
	ErrUnsupported = errors.New("netsocket: unsupported")
	// ErrNotInitialized is returned when sockets are created through a library that is not initialized
	ErrNotInitialized = errors.New("netsocket: library not initialized")
	// ErrPeerClosed is the cause of a receive that read zero bytes
	ErrPeerClosed = errors.New("netsocket: connection closed by peer")
	// ErrZeroWrite is the cause of a send that wrote zero bytes
	ErrZeroWrite = errors.New("netsocket: zero byte write")
)

// OpError is returned by all socket operations. It carries the operation
// name, the result class and the underlying cause.
type OpError struct {
	Op     string
	Result Result
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("netsocket: %s (%s): %v", e.Op, e.Result, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the class sentinels ErrFailed and ErrSocket
func (e *OpError) Is(target error) bool {
	switch target {
	case ErrFailed:
		return e.Result == Failed
	case ErrSocket:
		return e.Result == SocketError
	}
	return false
}

func failed(op string, err error) error {
	return &OpError{Op: op, Result: Failed, Err: err}
}

func socketError(op string, err error) error {
	return &OpError{Op: op, Result: SocketError, Err: err}
}

// ResultOf maps an error returned by this package to its Result class.
// Errors from other sources are reported as Failed.
func ResultOf(err error) Result {
	if err == nil {
		return Success
	}
	if errors.Is(err, ErrSocket) {
		return SocketError
	}
	return Failed
}
