// internal/sched/event.go

package sched

import (
	"time"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusCreate
	StatusDispatch
	StatusExpire
	StatusPreempt
	StatusYield
	StatusBlock
	StatusUnblock
	StatusFinish
	StatusTick
)

// StatusEvent is emitted every tick and on every scheduling decision
type StatusEvent struct {
	Time      time.Time
	Kind      StatusKind
	Thread    ThreadID
	Tick      int64 // scheduler tick count at emission
	Remaining int   // ticks left in the thread's slice, where meaningful
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusCreate:
		return "Created"
	case StatusDispatch:
		return "Dispatch"
	case StatusExpire:
		return "SliceExpired"
	case StatusPreempt:
		return "Preempt"
	case StatusYield:
		return "Yield"
	case StatusBlock:
		return "Block"
	case StatusUnblock:
		return "Unblock"
	case StatusFinish:
		return "Finish"
	case StatusTick:
		return "Tick"
	default:
		return "Unknown"
	}
}
