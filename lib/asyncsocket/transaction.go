package asyncsocket

import (
	"bytes"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	"slices"
)

// ReceiveHandler is called exactly once per receive. On success data holds the
// complete message and size its length. On failure data is nil, size is the
// number of bytes received before the failure and err the cause.
//
// data is owned by the handler, the socket does not touch it afterwards.
type ReceiveHandler func(data []byte, size int, err error)

// transaction is one queued unit of work. The worker executes transactions in
// queue order, abandon is called for transactions that never run. queued is
// called once the socket accepted the transaction, before the worker can see it.
type transaction interface {
	kind() string
	queued()
	execute(sock *netsocket.Socket, limit int) error
	abandon(err error)
	size() int
}

// --------------------------------------------------------------------------
// Send
// --------------------------------------------------------------------------

type sendTransaction struct {
	buf []byte
}

// newSendTransaction copies b, the caller may reuse it once Send returned
func newSendTransaction(b []byte) *sendTransaction {
	return &sendTransaction{buf: bytes.Clone(b)}
}

func (t *sendTransaction) kind() string { return "send" }

func (t *sendTransaction) size() int { return len(t.buf) }

func (t *sendTransaction) queued() {}

func (t *sendTransaction) execute(sock *netsocket.Socket, _ int) error {
	return sock.Send(t.buf)
}

func (t *sendTransaction) abandon(err error) {
	Logger.Debugf("dropping queued send of %d bytes: %v", len(t.buf), err)
}

// --------------------------------------------------------------------------
// Receive
// --------------------------------------------------------------------------

type receiveTransaction struct {
	formatter *BinaryFormatter
	handler   ReceiveHandler
	buf       []byte
	received  int
}

func newReceiveTransaction(formatter *BinaryFormatter, handler ReceiveHandler) *receiveTransaction {
	return &receiveTransaction{formatter: formatter, handler: handler}
}

func (t *receiveTransaction) kind() string { return "receive" }

func (t *receiveTransaction) size() int { return t.received }

// queued seals the formatter, a rejected receive leaves it untouched
func (t *receiveTransaction) queued() { t.formatter.seal() }

// execute reads one message as described by the formatter. Every field is
// appended to the transaction buffer, the handler gets the whole message.
func (t *receiveTransaction) execute(sock *netsocket.Socket, limit int) error {
	err := t.formatter.format(func(n int) ([]byte, error) {
		start := len(t.buf)
		t.buf = slices.Grow(t.buf, n)[:start+n]
		if err := sock.Receive(t.buf[start:]); err != nil {
			t.buf = t.buf[:start]
			return nil, err
		}
		return t.buf[start:], nil
	}, limit)

	if err != nil {
		t.handler(nil, len(t.buf), err)
		return err
	}

	data := t.buf
	t.buf = nil
	t.received = len(data)
	t.handler(data, len(data), nil)
	return nil
}

func (t *receiveTransaction) abandon(err error) {
	t.handler(nil, 0, err)
}
