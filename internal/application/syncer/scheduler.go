package syncer

import "time"

// TimeScheduler programa callbacks con time.AfterFunc.
type TimeScheduler struct{}

// AfterFunc ejecuta f en su propio goroutine cuando pasa d.
func (TimeScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}
