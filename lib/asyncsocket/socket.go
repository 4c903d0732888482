package asyncsocket

import (
	"fmt"
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("asyncsocket")

var (
	// ErrNotTransactable is returned once a transaction of the socket failed.
	// The socket can only be closed afterwards.
	ErrNotTransactable = errors.New("asyncsocket: socket is not transactable")
	// ErrClosed is returned for operations on a closed socket
	ErrClosed = errors.New("asyncsocket: socket is closed")
	// ErrAbandoned is passed to receive handlers of transactions dropped by Close
	ErrAbandoned = errors.New("asyncsocket: transaction abandoned")
	// ErrNotConnected is returned by Finish while the worker is not running
	ErrNotConnected = errors.New("asyncsocket: socket is not connected")
	// ErrAlreadyConnected is returned by Connect on a socket with a running worker
	ErrAlreadyConnected = errors.New("asyncsocket: socket is already connected")
)

var nextID atomic.Uint64

type workerState int

const (
	workerIdle workerState = iota
	workerRunning
	workerStopping
	workerStopped
)

// AsyncSocket wraps a netsocket.Socket and executes queued sends and receives
// on a dedicated worker goroutine, strictly in the order they were submitted.
//
// Send and Receive only enqueue and never block on the network. The worker is
// started once the socket is connected. The first failing transaction stops
// the worker for good: the socket is no longer transactable, queued receives
// are failed with ErrNotTransactable and the socket can only be closed.
//
// Receive handlers and the disconnect handler run on the worker goroutine (or
// the goroutine calling Close). They may enqueue further transactions but
// must not call Close or Finish on the same socket.
type AsyncSocket struct {
	id   uint64
	sock *netsocket.Socket
	conf common.SocketConf

	// mu guards all fields below, cond is signaled whenever one of them changes
	mu           sync.Mutex
	cond         *sync.Cond
	queue        *transactionQueue
	worker       workerState
	done         chan struct{}
	transactable bool
	err          error
	connecting   bool
	closed       bool
	onDisconnect func(a *AsyncSocket)
}

// New creates a socket through lib and wraps it
func New(lib *netsocket.Library, kind netsocket.SocketType, family netsocket.AddressFamily, proto netsocket.Protocol, conf common.SocketConf) (*AsyncSocket, error) {
	sock, err := lib.NewSocket(kind, family, proto)
	if err != nil {
		return nil, err
	}
	return Wrap(sock, conf), nil
}

// Wrap takes ownership of sock. If sock is already connected the worker is started.
func Wrap(sock *netsocket.Socket, conf common.SocketConf) *AsyncSocket {
	a := &AsyncSocket{
		id:           nextID.Add(1),
		sock:         sock,
		conf:         conf,
		queue:        newTransactionQueue(),
		transactable: true,
	}
	a.cond = sync.NewCond(&a.mu)

	sock.SetOnDisconnect(func(*netsocket.Socket) {
		a.mu.Lock()
		handler := a.onDisconnect
		a.mu.Unlock()
		if handler != nil {
			handler(a)
		}
	})

	registry.Store(a.id, a)

	if sock.IsConnected() {
		a.configure()
		a.mu.Lock()
		a.startWorkerLocked()
		a.mu.Unlock()
	}
	return a
}

// --------------------------------------------------------------------------
// Connection setup
// --------------------------------------------------------------------------

// Connect connects the underlying socket and starts the worker. Transactions
// queued before Connect are executed afterwards. If the connect fails the
// socket is not transactable anymore and must be closed.
func (a *AsyncSocket) Connect(address, port string) error {
	a.mu.Lock()
	if err := a.usableLocked(); err != nil {
		a.mu.Unlock()
		return err
	}
	if a.connecting || a.worker != workerIdle {
		a.mu.Unlock()
		return ErrAlreadyConnected
	}
	a.connecting = true
	a.mu.Unlock()

	err := a.sock.Connect(address, port)
	if err == nil {
		a.configure()
	}

	a.mu.Lock()
	a.connecting = false
	if err != nil {
		abandoned := a.failLocked(err)
		cause := a.deadErrLocked()
		a.mu.Unlock()
		abandonAll(abandoned, cause)
		return err
	}
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.startWorkerLocked()
	a.mu.Unlock()

	Logger.Infof("socket %d connected to %s:%s", a.id, address, port)
	return nil
}

// Bind binds the underlying socket
func (a *AsyncSocket) Bind(address, port string) error {
	return a.sock.Bind(address, port)
}

// Listen marks the underlying socket as listening
func (a *AsyncSocket) Listen() error {
	return a.sock.Listen()
}

// Accept waits for the next connection on a listening socket and returns it
// wrapped in a new AsyncSocket with a running worker
func (a *AsyncSocket) Accept() (*AsyncSocket, error) {
	sock, err := a.sock.Accept()
	if err != nil {
		return nil, err
	}
	accepted := Wrap(sock, a.conf)
	Logger.Debugf("socket %d accepted connection as socket %d", a.id, accepted.id)
	return accepted, nil
}

// configure applies the socket options, failures are logged only
func (a *AsyncSocket) configure() {
	if err := a.sock.Configure(a.conf); err != nil {
		Logger.Warningf("failed to configure socket %d: %v", a.id, err)
	}
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// Send queues b for sending. b is copied and can be reused by the caller.
func (a *AsyncSocket) Send(b []byte) error {
	return a.enqueue(newSendTransaction(b))
}

// Receive queues the receive of one message described by formatter. handler
// is called exactly once if Receive returns nil, either with the message or
// with the error that prevented it. A queued receive seals the formatter.
func (a *AsyncSocket) Receive(formatter *BinaryFormatter, handler ReceiveHandler) error {
	if formatter == nil || handler == nil {
		return errors.New("asyncsocket: receive needs a formatter and a handler")
	}
	return a.enqueue(newReceiveTransaction(formatter, handler))
}

func (a *AsyncSocket) enqueue(tx transaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.usableLocked(); err != nil {
		return err
	}
	tx.queued()
	a.queue.push(tx)
	a.cond.Broadcast()
	return nil
}

// Finish blocks until every queued transaction was executed. It returns early
// with an error if a transaction fails, the socket is closed or the worker is
// not running.
func (a *AsyncSocket) Finish() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		if err := a.usableLocked(); err != nil {
			return err
		}
		if a.queue.len() == 0 {
			return nil
		}
		if a.worker != workerRunning {
			return ErrNotConnected
		}
		a.cond.Wait()
	}
}

// --------------------------------------------------------------------------
// Worker
// --------------------------------------------------------------------------

// startWorkerLocked starts the worker goroutine, a.mu must be held
func (a *AsyncSocket) startWorkerLocked() {
	if a.worker != workerIdle || !a.transactable || a.closed {
		return
	}
	a.worker = workerRunning
	a.done = make(chan struct{})
	go a.run(a.done)
}

// run executes the queue head by head until the socket is closed or a
// transaction fails
func (a *AsyncSocket) run(done chan struct{}) {
	defer close(done)

	for {
		a.mu.Lock()
		for a.queue.len() == 0 && a.worker == workerRunning {
			a.cond.Wait()
		}
		if a.worker != workerRunning {
			a.worker = workerStopped
			a.cond.Broadcast()
			a.mu.Unlock()
			return
		}
		tx := a.queue.peek()
		a.mu.Unlock()

		start := time.Now()
		err := tx.execute(a.sock, a.conf.MaxFieldSize)
		observe(tx, err, start)

		a.mu.Lock()
		a.queue.pop()
		if err != nil && a.closed {
			// Close abandons whatever is left in the queue
			a.worker = workerStopped
			a.cond.Broadcast()
			a.mu.Unlock()
			Logger.Debugf("socket %d: %s transaction interrupted by close: %v", a.id, tx.kind(), err)
			return
		}
		if err != nil {
			abandoned := a.failLocked(err)
			cause := a.deadErrLocked()
			a.mu.Unlock()

			Logger.Errorf("socket %d: %s transaction failed: %v", a.id, tx.kind(), err)
			abandonAll(abandoned, cause)
			return
		}
		a.cond.Broadcast()
		a.mu.Unlock()
	}
}

// failLocked marks the socket as not transactable and empties the queue. The
// returned transactions must be abandoned without holding a.mu.
func (a *AsyncSocket) failLocked(err error) []transaction {
	if a.transactable {
		a.transactable = false
		a.err = err
	}
	if a.worker == workerRunning || a.worker == workerStopping {
		a.worker = workerStopped
	}
	abandoned := a.queue.drain()
	a.cond.Broadcast()
	return abandoned
}

// abandonAll drops transactions that will never run, a.mu must not be held
func abandonAll(txs []transaction, cause error) {
	observeAbandoned(txs)
	for _, tx := range txs {
		tx.abandon(cause)
	}
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// Close closes the underlying socket and stops the worker. A transaction in
// flight is interrupted. Queued receives are abandoned: their handlers are
// called with ErrAbandoned. Queued sends are dropped.
// Calling Close more than once is a no-op.
func (a *AsyncSocket) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	err := a.sock.Close()

	a.mu.Lock()
	if a.worker == workerRunning {
		a.worker = workerStopping
	}
	a.cond.Broadcast()
	done := a.done
	a.mu.Unlock()

	if done != nil {
		<-done
	}

	a.mu.Lock()
	abandoned := a.queue.drain()
	a.cond.Broadcast()
	a.mu.Unlock()

	if len(abandoned) > 0 {
		Logger.Debugf("socket %d: abandoning %d queued transactions", a.id, len(abandoned))
		abandonAll(abandoned, ErrAbandoned)
	}

	registry.Delete(a.id)
	return err
}

// SetOnDisconnect registers a handler called once when the connection goes away
func (a *AsyncSocket) SetOnDisconnect(handler func(a *AsyncSocket)) {
	a.mu.Lock()
	a.onDisconnect = handler
	a.mu.Unlock()
}

// --------------------------------------------------------------------------
// Status
// --------------------------------------------------------------------------

// ID returns the process unique id of the socket
func (a *AsyncSocket) ID() uint64 {
	return a.id
}

// Socket returns the underlying socket
func (a *AsyncSocket) Socket() *netsocket.Socket {
	return a.sock
}

// IsTransactable returns false once a transaction failed or the socket was closed
func (a *AsyncSocket) IsTransactable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transactable && !a.closed
}

// Err returns the error of the first failed transaction
func (a *AsyncSocket) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Pending returns the number of queued transactions, including the one in flight
func (a *AsyncSocket) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queue.len()
}

func (a *AsyncSocket) String() string {
	return fmt.Sprintf("AsyncSocket(%d, %s)", a.id, a.sock.State())
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// usableLocked returns the error for operations on a closed or failed socket
func (a *AsyncSocket) usableLocked() error {
	if a.closed {
		return ErrClosed
	}
	if !a.transactable {
		return a.deadErrLocked()
	}
	return nil
}

func (a *AsyncSocket) deadErrLocked() error {
	if a.err == nil {
		return ErrNotTransactable
	}
	return fmt.Errorf("%w: %w", ErrNotTransactable, a.err)
}
