//go:build linux

package serve

import (
	"github.com/ValentinKolb/netsock/lib/asyncsocket"
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	"strconv"
	"testing"
	"time"
)

func TestServerSendsMessages(t *testing.T) {
	const count = 3

	lib := netsocket.NewLibrary()
	if err := lib.Init(); err != nil {
		t.Fatalf("Failed to init library: %v", err)
	}
	defer lib.Shutdown()

	conf := common.DefaultSocketConf()
	listener, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, conf)
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
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

	srv := newServer(listener, []byte("Hello World"), count)
	served := make(chan struct{})
	go func() {
		srv.serve()
		close(served)
	}()

	client, err := asyncsocket.New(lib, netsocket.Stream, netsocket.IPv4, netsocket.TCP, conf)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()
	if err := client.Connect("127.0.0.1", strconv.Itoa(int(addr.Port()))); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	messages := make(chan string, count)
	formatter := asyncsocket.NewBinaryFormatter(asyncsocket.LengthPrefixed())
	for i := 0; i < count; i++ {
		err := client.Receive(formatter, func(data []byte, size int, err error) {
			if err != nil {
				t.Errorf("Receive failed after %d bytes: %v", size, err)
				messages <- ""
				return
			}
			if size != 15 {
				t.Errorf("Expected 15 bytes, got %d", size)
			}
			messages <- string(data[asyncsocket.LengthPrefixSize:])
		})
		if err != nil {
			t.Fatalf("Failed to queue receive: %v", err)
		}
	}

	for i := 0; i < count; i++ {
		select {
		case msg := <-messages:
			if msg != "Hello World" {
				t.Errorf("Expected %q, got %q", "Hello World", msg)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Timeout waiting for message %d", i)
		}
	}

	srv.shutdown()
	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatalf("Server did not stop after shutdown")
	}
	if srv.sessions.Size() != 0 {
		t.Errorf("Expected no open sessions, got %d", srv.sessions.Size())
	}
}
