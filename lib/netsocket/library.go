package netsocket

import (
	"github.com/pkg/errors"
	"sync"
)

// Library owns the process wide socket stack setup. It is initialized once by
// the host process before any socket is created and shut down when the
// process no longer needs sockets. Init and Shutdown are reference counted,
// so independent components may share one Library.
type Library struct {
	mu   sync.Mutex
	refs int
}

// NewLibrary returns an uninitialized library
func NewLibrary() *Library {
	return &Library{}
}

// Init starts the platform socket stack on the first call
func (l *Library) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 {
		if err := sysStartup(); err != nil {
			return failed("init", err)
		}
		Logger.Infof("socket library initialized")
	}
	l.refs++
	return nil
}

// Shutdown releases one reference, the platform socket stack is stopped
// when the last reference is released
func (l *Library) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 {
		return failed("shutdown", ErrNotInitialized)
	}

	l.refs--
	if l.refs == 0 {
		if err := sysCleanup(); err != nil {
			return failed("shutdown", err)
		}
		Logger.Infof("socket library shut down")
	}
	return nil
}

// Initialized returns true between the first Init and the last Shutdown
func (l *Library) Initialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs > 0
}

// NewSocket allocates a new OS socket. Failing to allocate a descriptor is a
// configuration error (unsupported parameters, exhausted descriptors, missing
// privileges for raw sockets) and should be treated as fatal by the caller.
func (l *Library) NewSocket(kind SocketType, family AddressFamily, proto Protocol) (*Socket, error) {
	if !l.Initialized() {
		return nil, failed("create", ErrNotInitialized)
	}
	return newSocket(kind, family, proto)
}

// MustSocket is like NewSocket but panics if the socket cannot be created
func (l *Library) MustSocket(kind SocketType, family AddressFamily, proto Protocol) *Socket {
	s, err := l.NewSocket(kind, family, proto)
	if err != nil {
		panic(errors.Wrap(err, "unable to create socket"))
	}
	return s
}
