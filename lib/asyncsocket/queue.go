package asyncsocket

import (
	"github.com/eapache/queue"
)

// transactionQueue is the FIFO of pending transactions. It is not safe for
// concurrent use, all access happens under AsyncSocket.mu.
//
// The worker peeks the head, executes it without holding the lock and pops it
// afterwards, so a transaction stays in the queue while it is in flight.
type transactionQueue struct {
	q *queue.Queue
}

func newTransactionQueue() *transactionQueue {
	return &transactionQueue{q: queue.New()}
}

func (tq *transactionQueue) push(tx transaction) {
	tq.q.Add(tx)
}

// peek returns the head of the queue or nil if the queue is empty
func (tq *transactionQueue) peek() transaction {
	if tq.q.Length() == 0 {
		return nil
	}
	return tq.q.Peek().(transaction)
}

// pop removes the head of the queue
func (tq *transactionQueue) pop() transaction {
	if tq.q.Length() == 0 {
		return nil
	}
	return tq.q.Remove().(transaction)
}

func (tq *transactionQueue) len() int {
	return tq.q.Length()
}

// drain empties the queue and returns the removed transactions in order
func (tq *transactionQueue) drain() []transaction {
	out := make([]transaction, 0, tq.q.Length())
	for tq.q.Length() > 0 {
		out = append(out, tq.q.Remove().(transaction))
	}
	return out
}
