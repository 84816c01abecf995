package core

import (
	"context"
	"sync"

	"pkt.systems/tabstrip/schema"
)

// saveQueue runs saves on one worker. Only the latest list per identity is
// kept, so a burst of mutations costs one write, and writes for an identity
// never overtake each other.
type saveQueue struct {
	save func(id schema.IdentityID, tabs []schema.Tab)

	mu      sync.Mutex
	pending map[schema.IdentityID][]schema.Tab
	order   []schema.IdentityID
	busy    bool
	closed  bool
	drained chan struct{}

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newSaveQueue(save func(id schema.IdentityID, tabs []schema.Tab)) *saveQueue {
	q := &saveQueue{
		save:    save,
		pending: make(map[schema.IdentityID][]schema.Tab),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// enqueue records tabs as the next list to write for id. It reports false once the queue is closed.
func (q *saveQueue) enqueue(id schema.IdentityID, tabs []schema.Tab) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.pending[id]; !ok {
		q.order = append(q.order, id)
	}
	q.pending[id] = schema.CloneTabs(tabs)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *saveQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.wake:
			q.drain()
		case <-q.stop:
			q.drain()
			return
		}
	}
}

func (q *saveQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.order) == 0 {
			q.busy = false
			if q.drained != nil {
				close(q.drained)
				q.drained = nil
			}
			q.mu.Unlock()
			return
		}
		id := q.order[0]
		q.order = q.order[1:]
		tabs := q.pending[id]
		delete(q.pending, id)
		q.busy = true
		q.mu.Unlock()
		q.save(id, tabs)
	}
}

func (q *saveQueue) flush(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.order) == 0 && !q.busy {
			q.mu.Unlock()
			return nil
		}
		if q.drained == nil {
			q.drained = make(chan struct{})
		}
		ch := q.drained
		q.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *saveQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.stop)
	<-q.done
}
