package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/intervalometer/capture"
	"github.jpl.nasa.gov/bdube/intervalometer/edsdk/edsdkmock"
	"github.jpl.nasa.gov/bdube/intervalometer/httpserver"
)

func newTestServer(t *testing.T, body edsdkmock.Body) (*httptest.Server, *capture.Controller) {
	t.Helper()
	sdk := edsdkmock.New()
	sdk.Cameras = []edsdkmock.Body{body}
	ctrl := capture.NewController(sdk, capture.NewSharedState())

	go ctrl.Run()
	t.Cleanup(func() { ctrl.Post(capture.Terminate, nil, true) })

	srv := httpserver.New(ctrl, t.TempDir())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, ctrl
}

func TestUnknownPathReturns404(t *testing.T) {
	ts, _ := newTestServer(t, edsdkmock.Body{Description: "EOS R5"})

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %q", ct)
	}
}

func TestGetCameraInitializesAndRendersPanel(t *testing.T) {
	ts, ctrl := newTestServer(t, edsdkmock.Body{Description: "EOS R5"})

	resp, err := http.Get(ts.URL + "/api/camera")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if snap := ctrl.Snapshot(); !snap.Initialized {
		t.Error("expected GET /api/camera to have initialized the controller")
	}
}

func TestConnectReturnsFullContent(t *testing.T) {
	ts, ctrl := newTestServer(t, edsdkmock.Body{
		Description: "EOS R5",
		TvValues:    []uint32{0x68},
	})
	ctrl.Post(capture.Initialize, nil, true)

	resp, err := http.Post(ts.URL+"/api/camera/connect", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if snap := ctrl.Snapshot(); !snap.Connected {
		t.Error("expected connect to have taken effect")
	}
}

func TestGetStateReturnsNoContentWhileShooting(t *testing.T) {
	ts, ctrl := newTestServer(t, edsdkmock.Body{
		Description: "EOS R5",
		TvValues:    []uint32{0x68},
	})
	ctrl.Post(capture.Initialize, nil, true)
	ctrl.Post(capture.Connect, nil, true)
	ctrl.State().SetExposureIndex(0)
	ctrl.State().SetFrames(5)
	ctrl.State().SetDelayUS(0)
	ctrl.State().SetIntervalUS(5_000_000)
	ctrl.Post(capture.StartShooting, nil, true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !ctrl.Snapshot().Shooting {
		time.Sleep(time.Millisecond)
	}

	resp, err := http.Get(ts.URL + "/api/camera/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 while shooting, got %d", resp.StatusCode)
	}
}

func TestStateDelayClampsNegativeToZero(t *testing.T) {
	ts, ctrl := newTestServer(t, edsdkmock.Body{Description: "EOS R5"})

	form := url.Values{"delay": {"-5"}}
	resp, err := http.PostForm(ts.URL+"/api/camera/state/delay", form)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if snap := ctrl.Snapshot(); snap.DelayUS != 0 {
		t.Errorf("expected delay clamped to 0, got %d", snap.DelayUS)
	}
}

func TestStateExposureUpdatesIndexAndCustom(t *testing.T) {
	ts, ctrl := newTestServer(t, edsdkmock.Body{
		Description: "EOS R5",
		TvValues:    []uint32{0x68},
	})
	ctrl.Post(capture.Initialize, nil, true)
	ctrl.Post(capture.Connect, nil, true)

	form := url.Values{"exposure": {"1"}, "exposure-custom": {"2.5"}}
	resp, err := http.PostForm(ts.URL+"/api/camera/state/exposure", form)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	snap := ctrl.Snapshot()
	if snap.ExposureIndex != 1 {
		t.Errorf("expected exposure index 1, got %d", snap.ExposureIndex)
	}
	if snap.ExposureUS != 2_500_000 {
		t.Errorf("expected exposure_us 2500000, got %d", snap.ExposureUS)
	}
}

func TestStateIsoUpdatesIndex(t *testing.T) {
	ts, ctrl := newTestServer(t, edsdkmock.Body{
		Description: "EOS R5",
		ISOValues:   []uint32{0x48, 0x4b},
	})
	ctrl.Post(capture.Initialize, nil, true)
	ctrl.Post(capture.Connect, nil, true)

	form := url.Values{"iso": {"1"}}
	resp, err := http.PostForm(ts.URL+"/api/camera/state/iso", form)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if snap := ctrl.Snapshot(); snap.IsoIndex != 1 {
		t.Errorf("expected iso index 1, got %d", snap.IsoIndex)
	}
}

// TestConcurrentConnectAndStateRead covers S6: a concurrent sync CONNECT and
// a GET /api/camera/state must never observe a torn mix of fields.
func TestConcurrentConnectAndStateRead(t *testing.T) {
	ts, ctrl := newTestServer(t, edsdkmock.Body{
		Description: "EOS R5",
		TvValues:    []uint32{0x68},
	})
	ctrl.Post(capture.Initialize, nil, true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Post(capture.Connect, nil, true)
	}()

	for i := 0; i < 50; i++ {
		resp, err := http.Get(ts.URL + "/api/camera/state")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			t.Fatalf("unexpected status %d", resp.StatusCode)
		}
	}
	<-done

	snap := ctrl.Snapshot()
	if snap.Connected && snap.Description == "" {
		t.Error("observed torn state: connected true with empty description")
	}
}
