package work

import (
	"sync/atomic"

	"github.com/FutureInLogistics/zephyr/internal/sched"
)

// Busy returns a thread body that burns ticksPerIteration of CPU per
// iteration and bumps counter once per iteration. It never yields; only
// slice expiration takes the CPU away.
func Busy(iterations, ticksPerIteration int, counter *atomic.Int64) sched.EntryFunc {
	return func(e *sched.Exec, _ any) {
		for i := 0; i < iterations; i++ {
			e.Busy(ticksPerIteration)
			counter.Add(1)
		}
	}
}

// Polite is Busy with a voluntary yield every yieldEvery iterations, the
// pattern of a thread that is cooperative but still subject to slicing.
func Polite(iterations, ticksPerIteration, yieldEvery int, counter *atomic.Int64) sched.EntryFunc {
	return func(e *sched.Exec, _ any) {
		for i := 1; i <= iterations; i++ {
			e.Busy(ticksPerIteration)
			counter.Add(1)
			if yieldEvery > 0 && i%yieldEvery == 0 {
				_ = e.Yield()
			}
		}
	}
}

// Waiter returns a body that joins target before doing its own work, for
// exercising blocking and wakeup paths.
func Waiter(target sched.ThreadID, afterTicks int, counter *atomic.Int64) sched.EntryFunc {
	return func(e *sched.Exec, _ any) {
		if err := e.Join(target); err != nil {
			return
		}
		e.Busy(afterTicks)
		counter.Add(1)
	}
}
