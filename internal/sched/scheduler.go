// internal/sched/scheduler.go

package sched

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Switcher is the external context-switch primitive: it performs the actual
// transfer of control to next. The scheduler assumes it is correct and never
// calls it with prev == next.
type Switcher interface {
	SwitchTo(prev, next ThreadID)
}

// SwitcherFunc adapts a plain function to the Switcher interface.
type SwitcherFunc func(prev, next ThreadID)

func (f SwitcherFunc) SwitchTo(prev, next ThreadID) { f(prev, next) }

// DecisionKind tags the outcome of a scheduling decision point.
type DecisionKind int

const (
	DecisionNone   DecisionKind = iota // the current thread keeps the CPU
	DecisionSwitch                     // control moves to Next
	DecisionIdle                       // nothing is runnable
)

// Decision is the tagged outcome of one decision point. Decision points
// return it instead of re-entering the scheduler, so a callback or event
// handler can never recurse into another decision.
type Decision struct {
	Kind DecisionKind
	Prev ThreadID
	Next ThreadID
}

// Scheduler is the per-CPU decision engine: it owns the thread table, the
// ready queues, the slice timer and the callback registry, and decides which
// ready thread runs next at every decision point. Exactly one thread is
// Running at any instant; every mutation happens under one lock, the
// conceptual "scheduling disabled" critical section.
type Scheduler struct {
	mu sync.Mutex

	cfg       Config
	threads   []*Thread
	ready     *readyQueue
	slices    *sliceTimer
	callbacks *callbackRegistry

	running ThreadID
	ticks   int64
	firing  bool // an expiration callback is in flight

	switcher Switcher
	log      *zap.Logger

	statusCh chan StatusEvent
	dropped  int64

	csvFile   *os.File
	csvWriter *csv.Writer
}

// New creates a Scheduler with the given configuration. sw may be nil when
// the caller only inspects returned Decisions.
func New(cfg Config, sw Switcher) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		threads:   make([]*Thread, 0, cfg.MaxThreads),
		ready:     newReadyQueue(),
		slices:    newSliceTimer(cfg.SliceTicks),
		callbacks: newCallbackRegistry(),
		running:   NoThread,
		switcher:  sw,
		log:       zap.NewNop(),
		statusCh:  make(chan StatusEvent, cfg.EventBuffer),
	}
}

// SetLogger installs a structured logger. Must be called before threads run.
func (s *Scheduler) SetLogger(l *zap.Logger) {
	if l != nil {
		s.log = l
	}
}

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before any thread runs.
func (s *Scheduler) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"timestamp", "tick", "event", "thread_id", "remaining", "ran_ticks"})
	w.Flush()
	s.csvFile = f
	s.csvWriter = w
	return nil
}

// StatusChannel exposes a read-only event stream (optional consumers). The
// channel is buffered and never blocks a decision point; events beyond the
// buffer are dropped and counted.
func (s *Scheduler) StatusChannel() <-chan StatusEvent { return s.statusCh }

// DroppedEvents reports how many events did not fit the status buffer.
func (s *Scheduler) DroppedEvents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close flushes the CSV trace and closes the status channel.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csvFile != nil {
		s.csvWriter.Flush()
		s.csvFile.Close()
		s.csvFile = nil
		s.csvWriter = nil
	}
	close(s.statusCh)
}

// Create registers a new thread in state Ready at the given priority, with
// the default slice configuration and no callback.
func (s *Scheduler) Create(priority int) (ThreadID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if priority < s.cfg.PriorityMin || priority > s.cfg.PriorityMax {
		return NoThread, errors.Wrapf(ErrInvalidArgument,
			"priority %d outside [%d, %d]", priority, s.cfg.PriorityMin, s.cfg.PriorityMax)
	}
	if len(s.threads) >= s.cfg.MaxThreads {
		return NoThread, errors.Wrapf(ErrResourceExhausted,
			"thread table full (%d)", s.cfg.MaxThreads)
	}

	t := &Thread{
		ID:       ThreadID(len(s.threads)),
		Priority: priority,
		State:    StateReady,
		override: SliceDefault,
	}
	s.slices.arm(t)
	s.threads = append(s.threads, t)
	if err := s.ready.enqueue(t); err != nil {
		return NoThread, err
	}

	s.emitLocked(StatusEvent{Kind: StatusCreate, Thread: t.ID, Remaining: t.remaining})
	s.log.Debug("thread created",
		zap.Int32("thread", int32(t.ID)), zap.Int("priority", priority))
	return t.ID, nil
}

// Kick dispatches the ready head when the CPU is idle; it is a no-op while a
// thread runs. Used to start the machine and to resume after full idle.
func (s *Scheduler) Kick() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != NoThread || s.firing {
		return Decision{Kind: DecisionNone, Prev: s.running, Next: s.running}
	}
	return s.dispatchLocked(NoThread)
}

// OnTick is the timer-interrupt entry point: it burns one tick of the
// Running thread's slice and, on expiration, fires the thread's callback and
// rotates it to the tail of its level.
func (s *Scheduler) OnTick() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks++
	if s.running == NoThread {
		s.emitLocked(StatusEvent{Kind: StatusTick, Thread: NoThread})
		return s.dispatchLocked(NoThread)
	}

	t := s.threads[s.running]
	expired := s.slices.tick(t)
	s.emitLocked(StatusEvent{Kind: StatusTick, Thread: t.ID, Remaining: t.remaining})
	if !expired {
		return Decision{Kind: DecisionNone, Prev: t.ID, Next: t.ID}
	}

	// The slice is spent. The thread leaves Running before its callback
	// fires and is requeued only afterward, so the callback observes the
	// transitional state the contract promises.
	t.expirations++
	t.State = StateReady
	s.running = NoThread
	s.emitLocked(StatusEvent{Kind: StatusExpire, Thread: t.ID, Remaining: t.remaining})
	s.log.Debug("slice expired",
		zap.Int32("thread", int32(t.ID)), zap.Int64("count", t.expirations))

	s.fireExpiryLocked(t.ID)

	// The callback may have blocked or terminated its own thread; only a
	// still-Ready, still-unqueued thread rotates to its level's tail.
	if t.State == StateReady && !t.queued {
		t.preemptions++
		_ = s.ready.enqueue(t)
	}
	return s.dispatchLocked(t.ID)
}

// Yield is decision point 2: the Running thread offers the CPU to peers at
// its own level. With no ready peer at an equal or more urgent level it is a
// no-op: the thread stays Running, no rotation, no callback.
func (s *Scheduler) Yield(id ThreadID) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupLocked(id)
	if err != nil {
		return Decision{}, err
	}
	if t.State == StateTerminated {
		return Decision{}, errors.Wrapf(ErrInvalidState, "yield: thread %d is terminated", id)
	}
	if s.running != id {
		// Not on the CPU (e.g. called from its own expiration callback):
		// nothing to surrender.
		return Decision{Kind: DecisionNone, Prev: s.running, Next: s.running}, nil
	}

	head := s.ready.peekHead()
	if head == nil || head.Priority > t.Priority {
		return Decision{Kind: DecisionNone, Prev: id, Next: id}, nil
	}

	s.emitLocked(StatusEvent{Kind: StatusYield, Thread: id, Remaining: t.remaining})
	s.running = NoThread
	if err := s.ready.requeueRunning(t); err != nil {
		return Decision{}, err
	}
	return s.dispatchLocked(id), nil
}

// Block is decision point 3: the thread waits on an external condition and
// surrenders the remainder of its slice.
func (s *Scheduler) Block(id ThreadID) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupLocked(id)
	if err != nil {
		return Decision{}, err
	}
	switch t.State {
	case StateTerminated, StateBlocked:
		return Decision{}, errors.Wrapf(ErrInvalidState, "block: thread %d is %s", id, t.State)
	}
	return s.blockLocked(t), nil
}

// Unblock is decision point 4: the awaited condition is satisfied. The woken
// thread joins the tail of its level with a freshly re-armed slice; it
// preempts the Running thread only when strictly more urgent. Equal-priority
// rotation is reserved for expiration and yield.
func (s *Scheduler) Unblock(id ThreadID) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupLocked(id)
	if err != nil {
		return Decision{}, err
	}
	if t.State != StateBlocked {
		return Decision{}, errors.Wrapf(ErrInvalidState, "unblock: thread %d is %s", id, t.State)
	}

	s.wakeLocked(t)
	return s.reconsiderLocked(), nil
}

// Exit is the terminal transition: the thread becomes Terminated,
// irreversibly, and every joiner wakes.
func (s *Scheduler) Exit(id ThreadID) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupLocked(id)
	if err != nil {
		return Decision{}, err
	}
	if t.State == StateTerminated {
		return Decision{}, errors.Wrapf(ErrInvalidState, "exit: thread %d already terminated", id)
	}

	if t.queued {
		s.ready.remove(t)
	}
	if s.running == id {
		s.running = NoThread
	}
	t.State = StateTerminated
	s.callbacks.unregister(id)
	s.emitLocked(StatusEvent{Kind: StatusFinish, Thread: id})
	s.log.Debug("thread finished",
		zap.Int32("thread", int32(id)), zap.Int64("ran_ticks", t.ranTicks))

	joiners := t.joiners
	t.joiners = nil
	for _, j := range joiners {
		if jt := s.threads[j]; jt.State == StateBlocked {
			s.wakeLocked(jt)
		}
	}
	return s.reconsiderLocked(), nil
}

// Join registers caller as waiting for target's termination and blocks it
// (decision point 3). done is true when target is already Terminated, in
// which case the caller must not wait.
func (s *Scheduler) Join(target, caller ThreadID) (d Decision, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tt, err := s.lookupLocked(target)
	if err != nil {
		return Decision{}, false, err
	}
	ct, err := s.lookupLocked(caller)
	if err != nil {
		return Decision{}, false, err
	}
	if target == caller {
		return Decision{}, false, errors.Wrapf(ErrInvalidState, "thread %d cannot join itself", caller)
	}
	if tt.State == StateTerminated {
		return Decision{Kind: DecisionNone, Prev: s.running, Next: s.running}, true, nil
	}
	switch ct.State {
	case StateTerminated, StateBlocked:
		return Decision{}, false, errors.Wrapf(ErrInvalidState, "join: caller %d is %s", caller, ct.State)
	}

	tt.joiners = append(tt.joiners, caller)
	return s.blockLocked(ct), false, nil
}

// SetSlice configures id's slice length in ticks; SliceDefault reverts to
// the global default. See sliceTimer.setSlice for the re-arm rules.
func (s *Scheduler) SetSlice(id ThreadID, ticks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	if t.State == StateTerminated {
		return errors.Wrapf(ErrInvalidState, "set slice: thread %d is terminated", id)
	}
	return s.slices.setSlice(t, ticks)
}

// SetGlobalSlice changes the process-wide default slice length.
func (s *Scheduler) SetGlobalSlice(ticks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slices.setGlobal(ticks)
}

// RegisterExpirationCallback attaches fn + userData to id, replacing any
// prior registration. fn fires exactly when id's own slice reaches zero
// while Running, never on yield or on preemption by a more urgent thread.
func (s *Scheduler) RegisterExpirationCallback(id ThreadID, fn ExpiryFunc, userData any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	if t.State == StateTerminated {
		return errors.Wrapf(ErrInvalidState, "register callback: thread %d is terminated", id)
	}
	s.callbacks.register(id, fn, userData)
	return nil
}

// UnregisterExpirationCallback clears id's expiration callback.
func (s *Scheduler) UnregisterExpirationCallback(id ThreadID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookupLocked(id); err != nil {
		return err
	}
	s.callbacks.unregister(id)
	return nil
}

// Running returns the handle of the thread currently on the CPU.
func (s *Scheduler) Running() ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TickCount returns the number of ticks processed so far.
func (s *Scheduler) TickCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// State reports id's lifecycle state.
func (s *Scheduler) State(id ThreadID) (ThreadState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return t.State, nil
}

// Remaining reports the ticks left in id's current slice.
func (s *Scheduler) Remaining(id ThreadID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return t.remaining, nil
}

// SliceTicks reports id's effective configured slice length.
func (s *Scheduler) SliceTicks(id ThreadID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return t.sliceFor(s.slices.global), nil
}

// RanTicks reports how many ticks id has spent on the CPU.
func (s *Scheduler) RanTicks(id ThreadID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return t.ranTicks, nil
}

// Expirations reports how many times id's own slice has expired.
func (s *Scheduler) Expirations(id ThreadID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return t.expirations, nil
}

// Preemptions reports how many times id was moved off the CPU involuntarily.
func (s *Scheduler) Preemptions(id ThreadID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return t.preemptions, nil
}

func (s *Scheduler) lookupLocked(id ThreadID) (*Thread, error) {
	if id < 0 || int(id) >= len(s.threads) {
		return nil, errors.Wrapf(ErrInvalidArgument, "no such thread %d", id)
	}
	return s.threads[id], nil
}

// blockLocked moves t into Blocked from wherever it is. A Ready thread just
// leaves its queue; the Running thread gives up the CPU and the next head is
// dispatched, unless an expiration callback is in flight (the expiration
// path finishes the pick itself).
func (s *Scheduler) blockLocked(t *Thread) Decision {
	s.emitLocked(StatusEvent{Kind: StatusBlock, Thread: t.ID})
	if t.State == StateReady {
		if t.queued {
			s.ready.remove(t)
		}
		t.State = StateBlocked
		return Decision{Kind: DecisionNone, Prev: s.running, Next: s.running}
	}

	// Running
	t.State = StateBlocked
	s.running = NoThread
	if s.firing {
		return Decision{Kind: DecisionNone, Prev: NoThread, Next: NoThread}
	}
	return s.dispatchLocked(t.ID)
}

// wakeLocked makes a Blocked thread Ready at the tail of its level with a
// full slice; no partial credit survives blocking.
func (s *Scheduler) wakeLocked(t *Thread) {
	t.State = StateReady
	s.slices.arm(t)
	_ = s.ready.enqueue(t)
	s.emitLocked(StatusEvent{Kind: StatusUnblock, Thread: t.ID, Remaining: t.remaining})
}

// reconsiderLocked applies the pick rule after a thread became Ready while
// another may be Running: dispatch when idle, preempt only when the ready
// head is strictly more urgent than the Running thread.
func (s *Scheduler) reconsiderLocked() Decision {
	if s.firing {
		return Decision{Kind: DecisionNone, Prev: NoThread, Next: NoThread}
	}
	if s.running == NoThread {
		return s.dispatchLocked(NoThread)
	}

	cur := s.threads[s.running]
	head := s.ready.peekHead()
	if head == nil || head.Priority >= cur.Priority {
		return Decision{Kind: DecisionNone, Prev: cur.ID, Next: cur.ID}
	}

	cur.preemptions++
	s.emitLocked(StatusEvent{Kind: StatusPreempt, Thread: cur.ID, Remaining: cur.remaining})
	s.running = NoThread
	_ = s.ready.requeueRunning(cur)
	return s.dispatchLocked(cur.ID)
}

// dispatchLocked promotes the most urgent ready head to Running with a fresh
// slice and hands the switch to the external context-switch primitive.
func (s *Scheduler) dispatchLocked(prev ThreadID) Decision {
	next := s.ready.dequeueHead()
	if next == nil {
		s.emitLocked(StatusEvent{Kind: StatusIdle, Thread: NoThread})
		return Decision{Kind: DecisionIdle, Prev: prev, Next: NoThread}
	}

	next.State = StateRunning
	s.slices.arm(next)
	s.running = next.ID
	s.emitLocked(StatusEvent{Kind: StatusDispatch, Thread: next.ID, Remaining: next.remaining})
	s.log.Debug("dispatch",
		zap.Int32("thread", int32(next.ID)), zap.Int("slice", next.remaining))

	if s.switcher != nil && prev != next.ID {
		s.switcher.SwitchTo(prev, next.ID)
	}
	return Decision{Kind: DecisionSwitch, Prev: prev, Next: next.ID}
}

// fireExpiryLocked invokes id's expiration callback, if registered. The
// entry is read under the lock but the callback runs outside it, so it may
// call lifecycle operations on its own thread. s.firing keeps those nested
// operations from dispatching mid-expiration; the expiration path performs
// the single pick once the callback returns.
func (s *Scheduler) fireExpiryLocked(id ThreadID) {
	fn, data, ok := s.callbacks.lookup(id)
	if !ok {
		return
	}
	s.firing = true
	s.mu.Unlock()
	fn(id, data)
	s.mu.Lock()
	s.firing = false
}

// emitLocked records ev in the CSV trace and offers it to the status
// channel without ever blocking a decision point.
func (s *Scheduler) emitLocked(ev StatusEvent) {
	ev.Time = time.Now()
	ev.Tick = s.ticks

	if s.csvWriter != nil && ev.Kind != StatusTick {
		var ran int64
		if ev.Thread != NoThread {
			ran = s.threads[ev.Thread].ranTicks
		}
		rec := []string{
			ev.Time.Format(time.RFC3339Nano),
			strconv.FormatInt(ev.Tick, 10),
			ev.Kind.String(),
			strconv.FormatInt(int64(ev.Thread), 10),
			strconv.Itoa(ev.Remaining),
			strconv.FormatInt(ran, 10),
		}
		s.csvWriter.Write(rec)
		s.csvWriter.Flush()
	}

	select {
	case s.statusCh <- ev:
	default:
		s.dropped++
	}
}
