// internal/sched/slicetimer.go

package sched

import "github.com/cockroachdb/errors"

// sliceTimer owns the global default slice length and the per-thread budget
// countdown. All methods run inside the scheduler's critical section.
type sliceTimer struct {
	global int // default slice length in ticks
}

func newSliceTimer(global int) *sliceTimer {
	return &sliceTimer{global: global}
}

// arm resets t's countdown to its full configured duration. Called on every
// transition into Running, on expiration, and on unblock (a thread never
// keeps partial credit from an earlier slice).
func (sl *sliceTimer) arm(t *Thread) {
	t.remaining = t.sliceFor(sl.global)
}

// tick burns one tick of t's budget and reports whether the slice expired.
// On expiry the countdown is re-armed before the expiration path continues,
// so a thread that keeps the CPU (no ready peers) starts a fresh slice.
func (sl *sliceTimer) tick(t *Thread) bool {
	t.remaining--
	t.ranTicks++
	if t.remaining > 0 {
		return false
	}
	sl.arm(t)
	return true
}

// setSlice updates t's configured duration. SliceDefault reverts to the
// global default. The live countdown is re-armed only when t is Running;
// otherwise the new duration takes effect on t's next Running transition.
func (sl *sliceTimer) setSlice(t *Thread, ticks int) error {
	if ticks != SliceDefault && ticks <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "slice must be a positive tick count, got %d", ticks)
	}
	t.override = ticks
	if t.State == StateRunning {
		sl.arm(t)
	}
	return nil
}

// setGlobal updates the default slice length. Threads with an override are
// untouched; threads without one pick the new value up at their next re-arm,
// never mid-slice.
func (sl *sliceTimer) setGlobal(ticks int) error {
	if ticks <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "global slice must be a positive tick count, got %d", ticks)
	}
	sl.global = ticks
	return nil
}
