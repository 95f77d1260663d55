package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FutureInLogistics/zephyr/internal/sched"
)

var (
	flagConfig  string
	flagCSV     string
	flagReal    bool
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "slicedemo",
		Short: "Time-sliced round-robin scheduling demonstrations",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "path to YAML config")
	root.PersistentFlags().StringVar(&flagCSV, "csv", "", "write an event trace to this CSV file")
	root.PersistentFlags().BoolVar(&flagReal, "real", false, "pace ticks against wall time instead of running virtually")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "print every scheduler event")

	root.AddCommand(newRoundRobinCmd(), newPerThreadCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRuntime builds a runtime from the shared flags.
func newRuntime() (*sched.Runtime, sched.Config, func(), error) {
	cfg := sched.Load(flagConfig)
	rt := sched.NewRuntime(cfg)

	logger := zap.NewNop()
	if flagVerbose {
		logger = zap.Must(zap.NewDevelopment())
	}
	rt.Core().SetLogger(logger)

	if flagCSV != "" {
		if err := rt.Core().EnableCSVLogging(flagCSV); err != nil {
			return nil, cfg, nil, err
		}
	}

	var clock *sched.TickClock
	if flagReal {
		clock = sched.NewTickClock(256)
		clock.Start(time.Duration(cfg.TickMS) * time.Millisecond)
		rt.SetPacer(clock)
	}

	stopRender := make(chan struct{})
	go renderEvents(rt.Core(), stopRender)

	cleanup := func() {
		if clock != nil {
			clock.Stop()
		}
		rt.Core().Close()
		<-stopRender
		_ = logger.Sync()
	}
	return rt, cfg, cleanup, nil
}

// renderEvents drains the status channel, printing non-tick events.
func renderEvents(s *sched.Scheduler, done chan<- struct{}) {
	defer close(done)

	// center the event kind in the output column
	center := func(str string, width int) string {
		spaces := (width - len(str)) / 2
		return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
	}

	for ev := range s.StatusChannel() {
		if ev.Kind == sched.StatusTick || !flagVerbose {
			continue
		}
		fmt.Printf("%s = Tick: %07d [%s] => Thread: %02d, remaining=%03d\n",
			ev.Time.Format("Jan 02 15:04:05.000"),
			ev.Tick,
			center(ev.Kind.String(), 14),
			ev.Thread,
			ev.Remaining,
		)
	}
}
