package capture_test

import (
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/intervalometer/capture"
	"github.jpl.nasa.gov/bdube/intervalometer/edsdk/edsdkmock"
)

func newTestController(t *testing.T, body edsdkmock.Body) (*capture.Controller, *edsdkmock.SDK) {
	t.Helper()
	sdk := edsdkmock.New()
	sdk.Cameras = []edsdkmock.Body{body}
	state := capture.NewSharedState()
	c := capture.NewController(sdk, state)

	go c.Run()
	t.Cleanup(func() { c.Post(capture.Terminate, nil, true) })

	return c, sdk
}

func waitForSnapshot(t *testing.T, c *capture.Controller, timeout time.Duration, pred func(capture.Snapshot) bool) capture.Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		snap := c.Snapshot()
		if pred(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for condition, last snapshot: %+v", snap)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	c, sdk := newTestController(t, edsdkmock.Body{Description: "EOS R5"})

	c.Post(capture.Initialize, nil, false)
	c.Post(capture.Initialize, nil, false)

	snap := c.Snapshot()
	if !snap.Initialized {
		t.Fatal("expected initialized")
	}
	if snap.Description != "EOS R5" {
		t.Errorf("expected description EOS R5, got %q", snap.Description)
	}
	if sdk.LoadCount != 1 {
		t.Errorf("expected exactly one SDK load call, got %d", sdk.LoadCount)
	}
}

func TestInitializeFailsOnZeroCameras(t *testing.T) {
	sdk := edsdkmock.New()
	state := capture.NewSharedState()
	c := capture.NewController(sdk, state)
	go c.Run()
	t.Cleanup(func() { c.Post(capture.Terminate, nil, true) })

	c.Post(capture.Initialize, nil, false)

	snap := c.Snapshot()
	if snap.Initialized {
		t.Error("expected initialize to fail with zero cameras")
	}
}

func TestConnectFiltersTables(t *testing.T) {
	c, _ := newTestController(t, edsdkmock.Body{
		Description: "EOS R5",
		TvValues:    []uint32{0x68, 0x6b},
		ISOValues:   []uint32{0x48, 0x4b},
	})

	c.Post(capture.Initialize, nil, false)
	c.Post(capture.Connect, nil, false)

	snap := c.Snapshot()
	if !snap.Connected {
		t.Fatal("expected connected")
	}
	if snap.ShutterTableLen != 2 || snap.IsoTableLen != 2 {
		t.Errorf("expected filtered tables of length 2, got shutter=%d iso=%d", snap.ShutterTableLen, snap.IsoTableLen)
	}
}

func TestNativeExposureSequence(t *testing.T) {
	c, sdk := newTestController(t, edsdkmock.Body{
		Description: "EOS R5",
		TvValues:    []uint32{0x68}, // "1/60"
	})

	c.Post(capture.Initialize, nil, false)
	c.Post(capture.Connect, nil, false)

	c.State().SetExposureIndex(0)
	c.State().SetFrames(3)
	c.State().SetDelayUS(0)
	c.State().SetIntervalUS(0)

	start := time.Now()
	c.Post(capture.StartShooting, nil, false)

	waitForSnapshot(t, c, 2*time.Second, func(s capture.Snapshot) bool { return !s.Shooting })
	elapsed := time.Since(start)

	if elapsed > 200*time.Millisecond {
		t.Errorf("native sequence with zero delays took too long: %v", elapsed)
	}

	snap := c.Snapshot()
	if snap.FramesTaken != 3 {
		t.Errorf("expected 3 frames taken, got %d", snap.FramesTaken)
	}
	if sdk.PressCount != 3 || sdk.ReleaseCount != 3 {
		t.Errorf("expected 3 press/release pairs, got press=%d release=%d", sdk.PressCount, sdk.ReleaseCount)
	}
}

func TestBulbExposureConverges(t *testing.T) {
	c, sdk := newTestController(t, edsdkmock.Body{
		Description:    "EOS R5",
		TvValues:       []uint32{0x68},
		PressLatency:   40 * time.Millisecond,
		ReleaseLatency: 20 * time.Millisecond,
	})

	c.Post(capture.Initialize, nil, false)
	c.Post(capture.Connect, nil, false)

	const exposureUS = 5_000_000 // 5s
	c.State().SetExposureIndex(1) // past the 1-entry table: Bulb
	c.State().SetExposureUS(exposureUS)
	c.State().SetFrames(4)
	c.State().SetDelayUS(0)
	c.State().SetIntervalUS(0)

	c.Post(capture.StartShooting, nil, false)
	waitForSnapshot(t, c, 25*time.Second, func(s capture.Snapshot) bool { return !s.Shooting })

	snap := c.Snapshot()
	if snap.FramesTaken != 4 {
		t.Fatalf("expected 4 frames taken, got %d", snap.FramesTaken)
	}

	durations := sdk.FrameDurations()
	if len(durations) != 4 {
		t.Fatalf("expected 4 measured press/release durations, got %d", len(durations))
	}

	target := time.Duration(exposureUS) * time.Microsecond
	deviation := func(d time.Duration) time.Duration {
		diff := d - target
		if diff < 0 {
			diff = -diff
		}
		return diff
	}

	// The residual ring feeds the plain running average of the controller's
	// own (measured - requested) back into the next frame's sleep. That
	// measurement spans the full 60ms press+release overhead, so the
	// residuals run 60ms, 0, 30ms, 30ms: the average settles at half the
	// overhead (30ms), not zero. The mock's press timestamp is taken after
	// the 40ms press latency, so the durations measured here span the sleep
	// plus only the 20ms release latency: frame 1 is 20ms long, frame 2 is
	// 40ms short, and frames 3 and 4 settle about 10ms short. What must hold
	// is that frame 4 lands closer to the 5s target than the uncorrected
	// first frame did, and stays within a small bound of it.
	first, fourth := deviation(durations[0]), deviation(durations[3])
	if fourth >= first {
		t.Errorf("expected frame 4 to be closer to the 5s target than frame 1: frame1 off by %v, frame4 off by %v", first, fourth)
	}
	if fourth > 35*time.Millisecond {
		t.Errorf("expected frame 4 to settle within 35ms of the 5s target, got %v off", fourth)
	}
}

func TestStopDuringInterval(t *testing.T) {
	c, _ := newTestController(t, edsdkmock.Body{
		Description: "EOS R5",
		TvValues:    []uint32{0x68},
	})

	c.Post(capture.Initialize, nil, false)
	c.Post(capture.Connect, nil, false)

	c.State().SetExposureIndex(0)
	c.State().SetFrames(10)
	c.State().SetDelayUS(0)
	c.State().SetIntervalUS(10_000_000) // 10s, long enough to stop mid-interval

	c.Post(capture.StartShooting, nil, false)

	// Frame 3 follows two full 10s intervals, so allow well over 20s.
	waitForSnapshot(t, c, 25*time.Second, func(s capture.Snapshot) bool { return s.FramesTaken >= 3 })
	c.Post(capture.StopShooting, nil, true)

	waitForSnapshot(t, c, time.Second, func(s capture.Snapshot) bool { return !s.Shooting })

	snap := c.Snapshot()
	if snap.FramesTaken != 3 {
		t.Errorf("expected shooting to stop at exactly frame 3, got %d", snap.FramesTaken)
	}
}

func TestDisconnectedWritesAreIgnored(t *testing.T) {
	c, sdk := newTestController(t, edsdkmock.Body{Description: "EOS R5", TvValues: []uint32{0x68}})

	c.State().SetExposureIndex(0)
	c.Post(capture.TakePicture, nil, false)

	snap := c.Snapshot()
	if snap.ExposureIndex != 0 {
		t.Errorf("expected exposure index to remain set, got %d", snap.ExposureIndex)
	}
	if sdk.PressCount != 0 {
		t.Errorf("expected no shutter press while disconnected, got %d", sdk.PressCount)
	}
}

func TestSyncPostObservesHandlerEffects(t *testing.T) {
	c, _ := newTestController(t, edsdkmock.Body{Description: "EOS R5"})
	c.Post(capture.Initialize, nil, false)
	if snap := c.Snapshot(); !snap.Initialized {
		t.Fatal("expected initialized immediately after synchronous post returns")
	}
}
