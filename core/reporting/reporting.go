// Package reporting forwards unexpected failures to an error tracker.
package reporting

import "time"

// Reporter records errors that need attention beyond the logs.
type Reporter interface {
	CaptureError(err error, tags map[string]string)
	// Recover reports a panic and re-raises it. It must be deferred.
	Recover()
	Flush(timeout time.Duration)
}

type Nop struct{}

func (Nop) CaptureError(error, map[string]string) {}
func (Nop) Recover()                              {}
func (Nop) Flush(time.Duration)                   {}
