// Package timing provides the monotonic clock, interruption-safe sleep, and
// shutter-latency residual ring used to time an exposure sequence.
package timing

import (
	"time"

	"github.com/brandondube/ringo"
)

// RingCapacity is the number of residual samples retained.
const RingCapacity = 32

// epoch is the arbitrary origin NowUS measures from; time.Since reads its
// monotonic clock reading.
var epoch = time.Now()

// NowUS returns monotonic microseconds since an arbitrary epoch.
func NowUS() int64 {
	return int64(time.Since(epoch) / time.Microsecond)
}

// SleepUS sleeps approximately d microseconds and returns true once the
// duration elapses. Go's runtime-managed timers are not shortened by signal
// delivery the way a raw nanosleep(2) is, so there is no EINTR to resume
// from here; SleepUSCancelable below is the one sleep in this package that
// can legitimately return early.
func SleepUS(d int64) bool {
	if d <= 0 {
		return true
	}
	time.Sleep(time.Duration(d) * time.Microsecond)
	return true
}

// SleepUSCancelable sleeps up to d microseconds, waking early if stop is
// closed. It returns false if the sleep was cancelled before completing.
func SleepUSCancelable(d int64, stop <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(time.Duration(d) * time.Microsecond)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}

// LatencyRing is a fixed-capacity ring of signed microsecond residuals:
// measured release_ts - press_ts - requested_exposure. Not concurrency
// safe; used only from the capture dispatcher goroutine.
type LatencyRing struct {
	buf ringo.CircleF64
}

// NewLatencyRing returns a ring with RingCapacity slots.
func NewLatencyRing() *LatencyRing {
	r := &LatencyRing{}
	r.buf.Init(RingCapacity)
	return r
}

// AddSample appends a residual, in microseconds, evicting the oldest sample
// once the ring is full.
func (r *LatencyRing) AddSample(residualUS int64) {
	r.buf.Append(float64(residualUS))
}

// AverageResidualUS returns the arithmetic mean of the held samples, or 0 if
// the ring is empty. ringo.CircleF64.Contiguous reports an empty ring as a
// single zero-valued sample, which happens to average to the same 0 the
// spec requires, so no special case is needed here.
func (r *LatencyRing) AverageResidualUS() int64 {
	vals := r.buf.Contiguous()
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return int64(sum / float64(len(vals)))
}
