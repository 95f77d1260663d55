package sched

// ThreadID is a stable thread handle: an index into the scheduler's
// fixed-capacity thread table. Handles stay valid after termination so a
// stale caller still gets a well-defined answer from state queries.
type ThreadID int32

// NoThread is the empty handle.
const NoThread ThreadID = -1

// SliceDefault is the per-thread slice sentinel meaning "use the global
// default". It is the only non-positive value SetSlice accepts.
const SliceDefault = -1

// ThreadState is the lifecycle state of a thread.
type ThreadState uint8

const (
	StateReady ThreadState = iota
	StateRunning
	StateBlocked
	StateTerminated
)

func (st ThreadState) String() string {
	switch st {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// ExpiryFunc is invoked when the owning thread's own slice reaches zero
// while it is Running. It executes before the next scheduling decision, with
// the thread already off the CPU and not yet requeued, so it must not assume
// the thread is still Running.
type ExpiryFunc func(id ThreadID, userData any)

// Thread is one schedulable unit. The Scheduler owns every field; callers
// reach them only through lifecycle operations, never directly.
type Thread struct {
	ID       ThreadID
	Priority int // lower number = more urgent
	State    ThreadState

	remaining int  // ticks left in the current slice
	override  int  // configured slice, SliceDefault when the global applies
	queued    bool // member of a ready queue right now

	expiry     ExpiryFunc
	expiryData any

	joiners []ThreadID

	// bookkeeping surfaced through accessors and the event stream
	ranTicks    int64
	expirations int64
	preemptions int64
}

// sliceFor returns the duration used when this thread's countdown re-arms.
func (t *Thread) sliceFor(global int) int {
	if t.override == SliceDefault {
		return global
	}
	return t.override
}
