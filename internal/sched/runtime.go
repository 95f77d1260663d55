// internal/sched/runtime.go

package sched

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// EntryFunc is a thread body. It runs only while the scheduler has the
// thread dispatched; the Exec it receives is its sole suspension surface.
type EntryFunc func(e *Exec, arg any)

// Exec is the view of the scheduler a running thread body sees.
type Exec struct {
	rt *Runtime
	id ThreadID
}

// ID returns the handle of the thread this body runs as.
func (e *Exec) ID() ThreadID { return e.id }

// Tick consumes one tick of busy work. It is the only implicit suspension
// point: when the tick expires this thread's slice, control transfers to the
// next ready peer and Tick returns only once this thread is dispatched
// again. Computation between Tick calls never suspends.
func (e *Exec) Tick() {
	if p := e.rt.pacer; p != nil {
		p.Wait()
	}
	d := e.rt.core.OnTick()
	e.rt.parkIfSwitched(e.id, d)
}

// Busy consumes n ticks of busy work.
func (e *Exec) Busy(n int) {
	for i := 0; i < n; i++ {
		e.Tick()
	}
}

// Yield offers the CPU to ready peers at this thread's priority level. With
// no such peer it is a no-op and the body keeps running.
func (e *Exec) Yield() error {
	d, err := e.rt.core.Yield(e.id)
	if err != nil {
		return err
	}
	e.rt.parkIfSwitched(e.id, d)
	return nil
}

// Join blocks this thread until target terminates. Joining an already
// Terminated thread returns immediately.
func (e *Exec) Join(target ThreadID) error {
	// The core blocks this thread and the switcher wakes whichever thread
	// won the CPU; this goroutine just waits for its own redispatch.
	_, done, err := e.rt.core.Join(target, e.id)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	e.rt.await(e.id)
	return nil
}

// Runtime adapts goroutines to scheduler threads. Each spawned body runs on
// its own goroutine, but exactly one holds the CPU baton at a time: a
// goroutine runs only between being woken through its gate and the next
// decision that switches away from it.
type Runtime struct {
	core  *Scheduler
	pacer Pacer

	mu      sync.Mutex
	gates   map[ThreadID]chan struct{}
	done    map[ThreadID]chan struct{}
	started bool
}

// NewRuntime creates a runtime and its scheduler core, wiring itself in as
// the context-switch primitive.
func NewRuntime(cfg Config) *Runtime {
	rt := &Runtime{
		gates: make(map[ThreadID]chan struct{}),
		done:  make(map[ThreadID]chan struct{}),
	}
	rt.core = New(cfg, SwitcherFunc(rt.switchTo))
	return rt
}

// Core exposes the underlying scheduler for configuration and inspection.
func (rt *Runtime) Core() *Scheduler { return rt.core }

// SetPacer installs a wall-clock pacer; without one, ticks are virtual.
// Must be called before Start.
func (rt *Runtime) SetPacer(p Pacer) { rt.pacer = p }

// Spawn creates a thread and the goroutine carrying its body. The body does
// not run until the scheduler dispatches it.
func (rt *Runtime) Spawn(priority int, entry EntryFunc, arg any) (ThreadID, error) {
	id, err := rt.core.Create(priority)
	if err != nil {
		return NoThread, err
	}

	gate := make(chan struct{}, 1)
	fin := make(chan struct{})
	rt.mu.Lock()
	rt.gates[id] = gate
	rt.done[id] = fin
	started := rt.started
	rt.mu.Unlock()

	go func() {
		<-gate
		entry(&Exec{rt: rt, id: id}, arg)
		// Exit wakes all joiners and dispatches the next thread.
		_, _ = rt.core.Exit(id)
		close(fin)
	}()

	if started {
		rt.core.Kick()
	}
	return id, nil
}

// Start dispatches the first ready thread and begins scheduling.
func (rt *Runtime) Start() {
	rt.mu.Lock()
	rt.started = true
	rt.mu.Unlock()
	rt.core.Kick()
}

// Join waits, from outside the scheduled world (e.g. main), for id to
// terminate. Scheduled threads use Exec.Join instead.
func (rt *Runtime) Join(id ThreadID) error {
	rt.mu.Lock()
	fin, ok := rt.done[id]
	rt.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrInvalidArgument, "join: unknown thread %d", id)
	}
	<-fin
	return nil
}

// SetSlice forwards to the scheduler core.
func (rt *Runtime) SetSlice(id ThreadID, ticks int) error {
	return rt.core.SetSlice(id, ticks)
}

// SetGlobalSlice forwards to the scheduler core.
func (rt *Runtime) SetGlobalSlice(ticks int) error {
	return rt.core.SetGlobalSlice(ticks)
}

// RegisterExpirationCallback forwards to the scheduler core.
func (rt *Runtime) RegisterExpirationCallback(id ThreadID, fn ExpiryFunc, userData any) error {
	return rt.core.RegisterExpirationCallback(id, fn, userData)
}

// switchTo is the Switcher implementation: it passes the baton by waking
// next's gate. The gate is buffered so a wake that lands before the target
// parks is not lost.
func (rt *Runtime) switchTo(prev, next ThreadID) {
	if next == NoThread || next == prev {
		return
	}
	rt.mu.Lock()
	g := rt.gates[next]
	rt.mu.Unlock()
	if g != nil {
		select {
		case g <- struct{}{}:
		default:
		}
	}
}

// parkIfSwitched waits on id's gate when the decision moved the CPU off
// this thread: either to another thread, or to idle (a callback blocked this
// thread and nothing else is runnable yet).
func (rt *Runtime) parkIfSwitched(id ThreadID, d Decision) {
	switch {
	case d.Kind == DecisionSwitch && d.Next != id:
		rt.await(id)
	case d.Kind == DecisionIdle:
		rt.await(id)
	}
}

func (rt *Runtime) await(id ThreadID) {
	rt.mu.Lock()
	g := rt.gates[id]
	rt.mu.Unlock()
	<-g
}
