// internal/sched/readyqueue.go

package sched

import (
	"github.com/cockroachdb/errors"
	"github.com/emirpasic/gods/lists/doublylinkedlist"
	"github.com/emirpasic/gods/maps/treemap"
)

// readyQueue keeps one FIFO of runnable threads per priority level. Levels
// live in a treemap ordered by priority number, so the most urgent non-empty
// level is always the tree minimum. Within a level, insertion order is the
// round-robin order: the thread that has waited longest runs first.
//
// Invariants: a thread is a member of at most one level's FIFO, only while
// Ready; the Running thread is a member of none.
type readyQueue struct {
	levels *treemap.Map // priority -> *doublylinkedlist.List of *Thread
	size   int
}

func newReadyQueue() *readyQueue {
	return &readyQueue{levels: treemap.NewWithIntComparator()}
}

// enqueue appends t to the tail of its priority's FIFO.
func (q *readyQueue) enqueue(t *Thread) error {
	if t.State != StateReady {
		return errors.Wrapf(ErrInvalidState, "enqueue: thread %d is %s", t.ID, t.State)
	}
	if t.queued {
		return errors.Wrapf(ErrInvalidState, "enqueue: thread %d is already queued", t.ID)
	}

	var fifo *doublylinkedlist.List
	if v, ok := q.levels.Get(t.Priority); ok {
		fifo = v.(*doublylinkedlist.List)
	} else {
		fifo = doublylinkedlist.New()
		q.levels.Put(t.Priority, fifo)
	}
	fifo.Append(t)
	t.queued = true
	q.size++
	return nil
}

// requeueRunning moves a Running thread to the tail of its level's FIFO,
// used on slice expiration, voluntary yield, and preemption.
func (q *readyQueue) requeueRunning(t *Thread) error {
	if t.State != StateRunning {
		return errors.Wrapf(ErrInvalidState, "requeue: thread %d is %s, want Running", t.ID, t.State)
	}
	t.State = StateReady
	return q.enqueue(t)
}

// peekHead returns the head of the most urgent non-empty level, or nil.
func (q *readyQueue) peekHead() *Thread {
	k, v := q.levels.Min()
	if k == nil {
		return nil
	}
	head, _ := v.(*doublylinkedlist.List).Get(0)
	return head.(*Thread)
}

// dequeueHead removes and returns the head of the most urgent level, or nil
// when every level is empty.
func (q *readyQueue) dequeueHead() *Thread {
	k, v := q.levels.Min()
	if k == nil {
		return nil
	}
	fifo := v.(*doublylinkedlist.List)
	head, _ := fifo.Get(0)
	fifo.Remove(0)
	if fifo.Empty() {
		q.levels.Remove(k)
	}

	t := head.(*Thread)
	t.queued = false
	q.size--
	return t
}

// remove takes t out of its level's FIFO regardless of position, used when a
// Ready thread blocks or terminates before being dispatched.
func (q *readyQueue) remove(t *Thread) {
	if !t.queued {
		return
	}
	v, ok := q.levels.Get(t.Priority)
	if !ok {
		return
	}
	fifo := v.(*doublylinkedlist.List)
	if i := fifo.IndexOf(t); i >= 0 {
		fifo.Remove(i)
	}
	if fifo.Empty() {
		q.levels.Remove(t.Priority)
	}
	t.queued = false
	q.size--
}

func (q *readyQueue) len() int { return q.size }
