// Package edsdkmock is an in-memory stand-in for edsdk.SDK, in the style of
// newport.MockController: a mutex-guarded struct with maps keyed by handle,
// plus knobs the test fixture twists to simulate specific camera behavior
// (fixed shutter latency, attached bodies, property tables).
package edsdkmock

import (
	"errors"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/intervalometer/edsdk"
)

// ErrNoCamera is returned by any call against a Device this mock did not
// hand out. EnumerateCameras with no Cameras returns an empty list and a nil
// error.
var ErrNoCamera = errors.New("edsdkmock: no such camera")

// Body describes one simulated camera: the description string EnumerateCameras
// reports, and the advertised value sets for Tv/ISO used by PropertyDesc.
type Body struct {
	Description string
	TvValues    []uint32
	ISOValues   []uint32

	// PressLatency / ReleaseLatency simulate the SDK call time S2 of the
	// end-to-end scenarios depends on: PressShutter sleeps PressLatency
	// for a press and ReleaseLatency for ShutterButtonOff before recording
	// its timestamp and returning, so a Bulb exposure timed around both
	// calls includes both latencies, while FrameDurations (release_ts -
	// press_ts) includes only ReleaseLatency.
	PressLatency   time.Duration
	ReleaseLatency time.Duration
}

// SDK is the mock edsdk.SDK implementation.
type SDK struct {
	mu sync.Mutex

	// Cameras is consulted by EnumerateCameras on every call, so a test can
	// mutate it between calls to simulate attach/detach.
	Cameras []Body

	// LoadCount records SDK-load calls that actually loaded, which tests
	// assert against (S4, "expect exactly one SDK-load call").
	LoadCount int
	loaded    bool

	nextHandle uintptr
	devices    map[uintptr]int // device ref -> index into Cameras at enumeration time
	bodies     map[uintptr]Body
	sessions   map[uintptr]bool
	properties map[uintptr]map[edsdk.PropertyID]uint32
	handlers   map[uintptr]edsdk.EventHandlers

	// PressCount / ReleaseCount tally PressShutter calls by button state,
	// for S1's "three press/release pairs, zero sleeps" assertion.
	PressCount   int
	ReleaseCount int

	// PressTimestamps / ReleaseTimestamps record wall-clock time at the
	// moment each call returns, in call order, so a test can measure the
	// per-frame exposure duration S2 describes directly rather than
	// trusting the controller's own residual bookkeeping.
	PressTimestamps   []time.Time
	ReleaseTimestamps []time.Time
}

// New returns an empty mock with no cameras attached.
func New() *SDK {
	return &SDK{
		devices:    make(map[uintptr]int),
		bodies:     make(map[uintptr]Body),
		sessions:   make(map[uintptr]bool),
		properties: make(map[uintptr]map[edsdk.PropertyID]uint32),
		handlers:   make(map[uintptr]edsdk.EventHandlers),
	}
}

func (s *SDK) LoadLibrary() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	s.loaded = true
	s.LoadCount++
	return nil
}

func (s *SDK) UnloadLibrary() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	return nil
}

func (s *SDK) EnumerateCameras() ([]edsdk.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]edsdk.Device, 0, len(s.Cameras))
	for i, body := range s.Cameras {
		h := s.nextHandle
		s.nextHandle++
		s.devices[h] = i
		s.bodies[h] = body
		s.properties[h] = map[edsdk.PropertyID]uint32{}
		devices = append(devices, edsdk.Device{Ref: h, Description: body.Description})
	}
	return devices, nil
}

func (s *SDK) body(d edsdk.Device) (Body, error) {
	b, ok := s.bodies[d.Ref]
	if !ok {
		return Body{}, ErrNoCamera
	}
	return b, nil
}

func (s *SDK) OpenSession(d edsdk.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.body(d); err != nil {
		return err
	}
	s.sessions[d.Ref] = true
	return nil
}

func (s *SDK) CloseSession(d edsdk.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.body(d); err != nil {
		return err
	}
	s.sessions[d.Ref] = false
	return nil
}

func (s *SDK) PropertyDesc(d edsdk.Device, prop edsdk.PropertyID) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.body(d)
	if err != nil {
		return nil, err
	}
	switch prop {
	case edsdk.PropTv:
		return append([]uint32(nil), b.TvValues...), nil
	case edsdk.PropISOSpeed:
		return append([]uint32(nil), b.ISOValues...), nil
	default:
		return nil, nil
	}
}

func (s *SDK) SetProperty(d edsdk.Device, prop edsdk.PropertyID, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.body(d); err != nil {
		return err
	}
	s.properties[d.Ref][prop] = value
	return nil
}

func (s *SDK) GetProperty(d edsdk.Device, prop edsdk.PropertyID) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.body(d); err != nil {
		return 0, err
	}
	return s.properties[d.Ref][prop], nil
}

func (s *SDK) PressShutter(d edsdk.Device, button edsdk.ShutterButton) error {
	s.mu.Lock()
	b, err := s.body(d)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if button == edsdk.ShutterButtonOff {
		if b.ReleaseLatency > 0 {
			time.Sleep(b.ReleaseLatency)
		}
		s.mu.Lock()
		s.ReleaseCount++
		s.ReleaseTimestamps = append(s.ReleaseTimestamps, time.Now())
		s.mu.Unlock()
		return nil
	}

	if b.PressLatency > 0 {
		time.Sleep(b.PressLatency)
	}
	s.mu.Lock()
	s.PressCount++
	s.PressTimestamps = append(s.PressTimestamps, time.Now())
	s.mu.Unlock()
	return nil
}

func (s *SDK) UILock(d edsdk.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.body(d)
	return err
}

func (s *SDK) UIUnlock(d edsdk.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.body(d)
	return err
}

func (s *SDK) RegisterEventHandlers(d edsdk.Device, h edsdk.EventHandlers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.body(d); err != nil {
		return err
	}
	s.handlers[d.Ref] = h
	return nil
}

func (s *SDK) PumpEvents() error {
	return nil
}

// FrameDurations pairs up recorded press/release timestamps in call order and
// returns the elapsed time each pair spans, i.e. the measured release_ts -
// press_ts duration S2 describes.
func (s *SDK) FrameDurations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.PressTimestamps)
	if len(s.ReleaseTimestamps) < n {
		n = len(s.ReleaseTimestamps)
	}
	out := make([]time.Duration, n)
	for i := 0; i < n; i++ {
		out[i] = s.ReleaseTimestamps[i].Sub(s.PressTimestamps[i])
	}
	return out
}
