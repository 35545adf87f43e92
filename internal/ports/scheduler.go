package ports

import "time"

// Scheduler runs callbacks no earlier than a given delay and reports the
// current time. All callbacks of one Scheduler run on the same goroutine as
// the code that owns the pipeline state.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) TimerHandle
}

// TimerHandle cancels a pending callback. Stop reports whether the callback
// was prevented from running.
type TimerHandle interface {
	Stop() bool
}
