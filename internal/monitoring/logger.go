// Package monitoring holds the process-wide fallback logger and progress
// reporting for long event loops.
package monitoring

import (
	"fmt"
	"log"
	"time"
)

// Logf is the package-level logger. It defaults to log.Printf; tests can
// redirect or mute it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Progress logs a line through Logf every Every items with the rate since
// the previous line. A zero Progress or Every <= 0 logs nothing.
type Progress struct {
	Label string
	Every int

	now   func() time.Time
	start time.Time
	last  time.Time
	lastN int
}

// NewProgress returns a Progress that starts timing immediately.
func NewProgress(label string, every int) *Progress {
	p := &Progress{Label: label, Every: every, now: time.Now}
	p.start = p.now()
	p.last = p.start
	return p
}

// Update reports that n items are done in total. detail is appended to the
// line when one is logged.
func (p *Progress) Update(n int, detail string) {
	if p == nil || p.Every <= 0 || n == 0 || n%p.Every != 0 {
		return
	}
	t := p.now()
	Logf("[%s] %d events (%s) %s", p.Label, n, rate(n-p.lastN, t.Sub(p.last)), detail)
	p.last, p.lastN = t, n
}

// Done logs the final count and overall rate.
func (p *Progress) Done(n int) {
	if p == nil || p.Every <= 0 {
		return
	}
	Logf("[%s] done: %d events in %s (%s)", p.Label, n, p.now().Sub(p.start).Round(time.Millisecond), rate(n, p.now().Sub(p.start)))
}

func rate(n int, d time.Duration) string {
	if d <= 0 {
		return "-- ev/s"
	}
	return fmt.Sprintf("%.1f ev/s", float64(n)/d.Seconds())
}
