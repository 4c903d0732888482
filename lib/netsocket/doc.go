// Package netsocket provides a blocking, connection oriented socket on top of
// an OS socket descriptor.
//
// The package focuses on:
//   - Full-transfer semantics: Send and Receive either move every requested
//     byte or fail, partial transfers are never visible to the caller
//   - Terminal failures: any I/O error or peer disconnect ends the
//     connection, there is no automatic reconnect
//   - Disconnect notification: a handler registered with SetOnDisconnect is
//     called exactly once when a connected socket goes away
//
// Key Components:
//
//   - Library: explicit lifecycle of the process wide socket stack. Sockets
//     are created through an initialized Library.
//
//   - Socket: one descriptor and its state (invalid, created, connected,
//     closed). Offers Bind/Listen/Accept for servers and Connect for clients.
//
//   - OpError: every operation returns nil or an *OpError carrying the Result
//     class (Failed or SocketError). Use errors.Is with ErrFailed or ErrSocket,
//     or ResultOf, to branch on the class.
//
// Usage:
//
//	lib := netsocket.NewLibrary()
//	if err := lib.Init(); err != nil {
//		panic(err)
//	}
//	defer lib.Shutdown()
//
//	s := lib.MustSocket(netsocket.Stream, netsocket.IPv4, netsocket.TCP)
//	if err := s.Connect("127.0.0.1", "8000"); err != nil {
//		return err
//	}
//	defer s.Close()
//
//	buf := make([]byte, 11)
//	err := s.Receive(buf)
//
// Only IPv4 is supported. The descriptor backend is implemented for Linux,
// other platforms return ErrUnsupported.
//
// Thread Safety:
//
//	Close and Shutdown may be called concurrently with a blocked Send,
//	Receive or Accept to interrupt it. Concurrent Send calls (or concurrent
//	Receive calls) on one socket are not serialized and may interleave.
package netsocket
