package timing_test

import (
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/intervalometer/timing"
)

func TestLatencyRingEmptyAverage(t *testing.T) {
	r := timing.NewLatencyRing()
	if avg := r.AverageResidualUS(); avg != 0 {
		t.Errorf("expected empty ring average 0, got %d", avg)
	}
}

func TestLatencyRingAverage(t *testing.T) {
	r := timing.NewLatencyRing()
	r.AddSample(10)
	r.AddSample(20)
	r.AddSample(30)
	if avg := r.AverageResidualUS(); avg != 20 {
		t.Errorf("expected average 20, got %d", avg)
	}
}

func TestLatencyRingCapacity(t *testing.T) {
	r := timing.NewLatencyRing()
	for i := 0; i < timing.RingCapacity*3; i++ {
		r.AddSample(int64(i))
	}
	// only the most recent RingCapacity samples should survive: their mean
	// is the mean of [2*RingCapacity, 3*RingCapacity)
	var want int64
	lo := timing.RingCapacity * 2
	hi := timing.RingCapacity*3 - 1
	want = int64((lo + hi) / 2)
	if avg := r.AverageResidualUS(); avg != want {
		t.Errorf("expected average %d after overflow, got %d", want, avg)
	}
}

func TestSleepUSSleepsAtLeastRequested(t *testing.T) {
	start := time.Now()
	if !timing.SleepUS(5000) {
		t.Fatal("expected SleepUS to succeed")
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("slept for less than requested: %v", elapsed)
	}
}

func TestSleepUSCancelable(t *testing.T) {
	stop := make(chan struct{})
	go func() {
		time.Sleep(2 * time.Millisecond)
		close(stop)
	}()
	if ok := timing.SleepUSCancelable(time.Second.Microseconds(), stop); ok {
		t.Error("expected cancellation to report false")
	}
}

func TestSleepUSCancelableCompletes(t *testing.T) {
	stop := make(chan struct{})
	if ok := timing.SleepUSCancelable(1000, stop); !ok {
		t.Error("expected short sleep to complete without cancellation")
	}
}
