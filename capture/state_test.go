package capture_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.jpl.nasa.gov/bdube/intervalometer/capture"
)

func TestSnapshotReflectsSetters(t *testing.T) {
	state := capture.NewSharedState()
	before := state.Snapshot()

	state.SetDelayUS(2_000_000)
	state.SetIntervalUS(3_000_000)
	state.SetFrames(5)
	state.SetExposureIndex(1)
	state.SetExposureUS(250_000)
	state.SetIsoIndex(2)

	after := state.Snapshot()

	want := before
	want.DelayUS = 2_000_000
	want.IntervalUS = 3_000_000
	want.Frames = 5
	want.ExposureIndex = 1
	want.ExposureUS = 250_000
	want.IsoIndex = 2

	if diff := cmp.Diff(want, after); diff != "" {
		t.Errorf("snapshot after setters mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSharedStateDefaults(t *testing.T) {
	want := capture.Snapshot{
		Running:    true,
		DelayUS:    1_000_000,
		IntervalUS: 1_000_000,
		Frames:     2,
		ExposureUS: 500_000,
	}
	got := capture.NewSharedState().Snapshot()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("default snapshot mismatch (-want +got):\n%s", diff)
	}
}
