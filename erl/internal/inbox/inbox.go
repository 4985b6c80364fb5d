// Package inbox is the unbounded message queue behind every process mailbox.
// Writers never block, which is what lets a parent post deferred work to its
// own mailbox without deadlocking.
package inbox

import (
	"fmt"
	"iter"
	"sync"
)

type Inbox[M any] struct {
	msgQ   []M
	mx     sync.Mutex
	done   chan struct{}
	closed bool
	cond   *sync.Cond
}

// Create an Inbox that will store messages of type [M]. Write with
// [Inbox.Enqueue]; read with [Inbox.Pop], [Inbox.BlockingPop], a for-range
// over [Inbox.Iter], or [Inbox.Channel]. All are safe for concurrent use.
func New[M any]() *Inbox[M] {
	i := &Inbox[M]{
		msgQ: make([]M, 0, 10),
		done: make(chan struct{}),
	}
	i.cond = sync.NewCond(&i.mx)
	return i
}

// Add a message to the end of the queue.
func (i *Inbox[M]) Enqueue(msg M) bool {
	i.mx.Lock()
	defer i.mx.Unlock()

	if i.closed {
		return false
	}

	i.msgQ = append(i.msgQ, msg)
	i.cond.Broadcast()

	return true
}

// get and remove a value from the inbox. If there was no item returned, [ok]
// returns false. If the inbox is closed and will never return a value,
// [closed] will be not nil.
func (i *Inbox[M]) Pop() (item M, ok bool, closed error) {
	i.mx.Lock()
	defer i.mx.Unlock()

	if i.closed {
		return item, false, fmt.Errorf("inbox closed")
	}
	if len(i.msgQ) == 0 {
		return item, false, nil
	}

	head := i.msgQ[0]
	i.msgQ = i.msgQ[1:]

	return head, true, nil
}

// Similar to [Inbox.Pop], but blocks until it has a value to retrieve or the
// inbox is closed. [item] may be empty when multiple goroutines race for the
// same message, so always check [ok].
func (i *Inbox[M]) BlockingPop() (item M, ok bool, closed error) {
	i.mx.Lock()
	defer i.mx.Unlock()

	for len(i.msgQ) == 0 && !i.closed {
		i.cond.Wait()
	}

	if i.closed {
		return item, false, fmt.Errorf("inbox closed")
	}
	if len(i.msgQ) == 0 {
		return item, false, nil
	}

	head := i.msgQ[0]
	i.msgQ = i.msgQ[1:]

	return head, true, nil
}

// Returns a channel that will receive values from the Inbox until it is
// closed.
func (i *Inbox[M]) Channel() <-chan M {
	c := make(chan M)

	go func() {
		defer close(c)

		for {
			item, ok, closed := i.BlockingPop()
			if closed != nil {
				return
			}
			if !ok {
				continue
			}
			c <- item
		}
	}()
	return c
}

// Iter is an iterator for use with a range loop. It exhausts when the inbox
// is closed. Check [ok]; another goroutine may have won the message.
func (i *Inbox[M]) Iter() iter.Seq2[M, bool] {
	return func(yield func(M, bool) bool) {
		for {
			item, ok, closed := i.BlockingPop()
			if closed != nil {
				return
			}

			if !yield(item, ok) {
				return
			}
		}
	}
}

// Return the number of items in the Inbox
func (i *Inbox[M]) Size() int {
	i.mx.Lock()
	defer i.mx.Unlock()

	return len(i.msgQ)
}

// Drain closes the inbox and returns everything left in the queue.
func (i *Inbox[M]) Drain() []M {
	i.mx.Lock()
	defer i.mx.Unlock()
	if i.closed {
		return i.msgQ
	}

	result := make([]M, len(i.msgQ))
	copy(result, i.msgQ)
	i.closed = true
	close(i.done)
	i.cond.Broadcast()

	return result
}

// closes all iterators and channels associated with this inbox, and prevents
// any messages from being queued/dequeued. [Inbox.BlockingPop] will also
// return.
func (i *Inbox[M]) Close() {
	i.mx.Lock()
	defer i.mx.Unlock()
	if i.closed {
		return
	}
	i.closed = true
	// shut down the receiver go routines
	close(i.done)
	i.cond.Broadcast()
}
