// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
	"time"
)

// Pacer gates tick delivery against an external clock. The runtime calls
// Wait before burning each tick when a pacer is installed; without one,
// ticks are virtual and advance as fast as the running thread works.
type Pacer interface {
	Wait()
}

// TickClock emits ticks at a fixed period and counts them atomically. It is
// the timer-hardware collaborator for real-time runs.
type TickClock struct {
	Ch    chan struct{}
	count atomic.Int64
	stop  chan struct{}
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				c.Ch <- struct{}{}
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks.
func (c *TickClock) Stop() {
	close(c.stop)
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Wait blocks until the next tick fires, satisfying Pacer.
func (c *TickClock) Wait() {
	<-c.Ch
}
