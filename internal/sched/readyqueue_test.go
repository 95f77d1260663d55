package sched

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyThread(id ThreadID, priority int) *Thread {
	return &Thread{ID: id, Priority: priority, State: StateReady, override: SliceDefault}
}

func TestReadyQueueFIFOWithinLevel(t *testing.T) {
	q := newReadyQueue()

	a := readyThread(0, 5)
	b := readyThread(1, 5)
	c := readyThread(2, 5)
	require.NoError(t, q.enqueue(a))
	require.NoError(t, q.enqueue(b))
	require.NoError(t, q.enqueue(c))
	require.Equal(t, 3, q.len())

	assert.Same(t, a, q.dequeueHead())
	assert.Same(t, b, q.dequeueHead())
	assert.Same(t, c, q.dequeueHead())
	assert.Nil(t, q.dequeueHead())
	assert.Equal(t, 0, q.len())
}

func TestReadyQueuePrefersMostUrgentLevel(t *testing.T) {
	q := newReadyQueue()

	low := readyThread(0, 9)
	high := readyThread(1, 2)
	mid := readyThread(2, 5)
	require.NoError(t, q.enqueue(low))
	require.NoError(t, q.enqueue(high))
	require.NoError(t, q.enqueue(mid))

	assert.Same(t, high, q.peekHead())
	assert.Same(t, high, q.dequeueHead())
	assert.Same(t, mid, q.dequeueHead())
	assert.Same(t, low, q.dequeueHead())
}

func TestReadyQueueEnqueueRejectsNonReady(t *testing.T) {
	q := newReadyQueue()

	running := &Thread{ID: 0, Priority: 5, State: StateRunning}
	err := q.enqueue(running)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))

	blocked := &Thread{ID: 1, Priority: 5, State: StateBlocked}
	err = q.enqueue(blocked)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, 0, q.len())
}

func TestReadyQueueEnqueueRejectsDoubleInsert(t *testing.T) {
	q := newReadyQueue()

	a := readyThread(0, 5)
	require.NoError(t, q.enqueue(a))
	err := q.enqueue(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, 1, q.len())
}

func TestReadyQueueRequeueRunningRotatesToTail(t *testing.T) {
	q := newReadyQueue()

	a := readyThread(0, 5)
	b := readyThread(1, 5)
	require.NoError(t, q.enqueue(a))
	require.NoError(t, q.enqueue(b))

	cur := q.dequeueHead()
	require.Same(t, a, cur)
	cur.State = StateRunning

	require.NoError(t, q.requeueRunning(cur))
	assert.Equal(t, StateReady, cur.State)

	// b waited longer, so it goes first; a follows at the tail
	assert.Same(t, b, q.dequeueHead())
	assert.Same(t, a, q.dequeueHead())
}

func TestReadyQueueRequeueRunningRejectsNonRunning(t *testing.T) {
	q := newReadyQueue()

	a := readyThread(0, 5)
	err := q.requeueRunning(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestReadyQueueRemove(t *testing.T) {
	q := newReadyQueue()

	a := readyThread(0, 5)
	b := readyThread(1, 5)
	c := readyThread(2, 5)
	require.NoError(t, q.enqueue(a))
	require.NoError(t, q.enqueue(b))
	require.NoError(t, q.enqueue(c))

	q.remove(b)
	assert.False(t, b.queued)
	assert.Equal(t, 2, q.len())
	assert.Same(t, a, q.dequeueHead())
	assert.Same(t, c, q.dequeueHead())

	// removing an unqueued thread is a no-op
	q.remove(b)
	assert.Equal(t, 0, q.len())
}

func TestReadyQueueRemoveDrainsLevel(t *testing.T) {
	q := newReadyQueue()

	a := readyThread(0, 3)
	b := readyThread(1, 7)
	require.NoError(t, q.enqueue(a))
	require.NoError(t, q.enqueue(b))

	q.remove(a)
	assert.Same(t, b, q.peekHead())
}
