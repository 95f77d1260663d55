package main

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/FutureInLogistics/zephyr/internal/sched"
	"github.com/FutureInLogistics/zephyr/internal/work"
)

// roundrobin: N equal-priority threads share the CPU through the global time
// slice alone. Every thread does the same busy work; fairness shows up as
// near-identical final counters.
func newRoundRobinCmd() *cobra.Command {
	var (
		numThreads int
		priority   int
		iterations int
		workTicks  int
	)

	cmd := &cobra.Command{
		Use:   "roundrobin",
		Short: "Equal-priority threads sharing the CPU via the global time slice",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cfg, cleanup, err := newRuntime()
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Printf("=== Time Slicing Demonstration ===\n\n")
			fmt.Printf("%d threads at priority %d, global slice = %d ticks\n\n",
				numThreads, priority, cfg.SliceTicks)

			counters := make([]atomic.Int64, numThreads)
			handles := make([]sched.ThreadID, numThreads)
			for i := 0; i < numThreads; i++ {
				h, err := rt.Spawn(priority, work.Busy(iterations, workTicks, &counters[i]), nil)
				if err != nil {
					return err
				}
				handles[i] = h
			}

			rt.Start()
			for _, h := range handles {
				if err := rt.Join(h); err != nil {
					return err
				}
			}

			fmt.Printf("\n=== Final Results ===\n")
			for i, h := range handles {
				ran, _ := rt.Core().RanTicks(h)
				exp, _ := rt.Core().Expirations(h)
				fmt.Printf("Thread %d: iterations=%d, ran=%d ticks, slice expirations=%d\n",
					i, counters[i].Load(), ran, exp)
			}
			fmt.Printf("\nAll threads received approximately equal CPU time.\n")
			return nil
		},
	}

	cmd.Flags().IntVar(&numThreads, "threads", 3, "number of threads")
	cmd.Flags().IntVar(&priority, "priority", 5, "shared priority level")
	cmd.Flags().IntVar(&iterations, "iterations", 20, "busy iterations per thread")
	cmd.Flags().IntVar(&workTicks, "work-ticks", 10, "ticks of busy work per iteration")
	return cmd
}
