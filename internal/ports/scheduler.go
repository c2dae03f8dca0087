package ports

import "time"

// Scheduler programa callbacks diferidos. La implementación real usa time.AfterFunc;
// los tests usan un scheduler manual.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func() bool)
}
