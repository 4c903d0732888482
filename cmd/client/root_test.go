//go:build linux

package client

import (
	"bytes"
	"github.com/ValentinKolb/netsock/lib/asyncsocket"
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	"strconv"
	"testing"
)

// newTestConnection returns a connected client and the accepted server side
func newTestConnection(t *testing.T) (*asyncsocket.AsyncSocket, *asyncsocket.AsyncSocket) {
	t.Helper()
	lib := netsocket.NewLibrary()
	if err := lib.Init(); err != nil {
		t.Fatalf("Failed to init library: %v", err)
	}
	t.Cleanup(func() { _ = lib.Shutdown() })

	conf := common.DefaultSocketConf()
	listener, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, conf)
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })
	if err := listener.Bind("127.0.0.1", "0"); err != nil {
		t.Fatalf("Failed to bind: %v", err)
	}
	if err := listener.Listen(); err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr, err := listener.Socket().LocalAddr()
	if err != nil {
		t.Fatalf("Failed to get local address: %v", err)
	}

	accepted := make(chan *asyncsocket.AsyncSocket, 1)
	go func() {
		peer, err := listener.Accept()
		if err != nil {
			t.Errorf("Failed to accept: %v", err)
		}
		accepted <- peer
	}()

	conn, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, conf)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.Connect("127.0.0.1", strconv.Itoa(int(addr.Port()))); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	peer := <-accepted
	if peer == nil {
		t.FailNow()
	}
	t.Cleanup(func() { _ = peer.Close() })
	return conn, peer
}

func TestReceiveMessages(t *testing.T) {
	conn, peer := newTestConnection(t)

	for _, msg := range []string{"Hello World", "second"} {
		if err := peer.Send(asyncsocket.EncodeLengthPrefixed([]byte(msg))); err != nil {
			t.Fatalf("Failed to queue send: %v", err)
		}
	}

	var out bytes.Buffer
	if err := receiveMessages(conn, 2, &out); err != nil {
		t.Fatalf("receiveMessages failed: %v", err)
	}
	if got := out.String(); got != "Hello World\nsecond\n" {
		t.Errorf("Unexpected output %q", got)
	}
}

func TestReceiveMessagesPeerClosed(t *testing.T) {
	conn, peer := newTestConnection(t)

	if err := peer.Send(asyncsocket.EncodeLengthPrefixed([]byte("only one"))); err != nil {
		t.Fatalf("Failed to queue send: %v", err)
	}
	if err := peer.Finish(); err != nil {
		t.Fatalf("Failed to finish: %v", err)
	}
	if err := peer.Close(); err != nil {
		t.Fatalf("Failed to close peer: %v", err)
	}

	var out bytes.Buffer
	if err := receiveMessages(conn, 3, &out); err == nil {
		t.Fatalf("Expected an error when the peer closes early")
	}
	if got := out.String(); got != "only one\n" {
		t.Errorf("Unexpected output %q", got)
	}
}
