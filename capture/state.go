package capture

import "sync"

// SharedState is the single owned value the dispatcher mutates and the HTTP
// front-end reads, always through a snapshot copy taken under mu (spec.md
// §3, §9 "Global mutable state": re-architected as one owned value rather
// than a file-scope C aggregate, but the locking discipline is unchanged).
type SharedState struct {
	mu sync.Mutex

	Running     bool
	Initialized bool
	Connected   bool
	Shooting    bool
	Description string

	IsoIndex      int
	ExposureIndex int
	ExposureUS    int64

	DelayUS    int64
	IntervalUS int64

	Frames      int
	FramesTaken int

	// shutterTable / isoTable are the per-body filtered tables produced on
	// CONNECT. Nil before the first successful connect.
	shutterTable []ShutterEntry
	isoTable     []IsoEntry
}

// NewSharedState returns the defaults the original g_state literal used:
// delay=1s, interval=1s, frames=2, a half-second custom (Bulb) exposure.
func NewSharedState() *SharedState {
	return &SharedState{
		Running:    true,
		DelayUS:    1_000_000,
		IntervalUS: 1_000_000,
		Frames:     2,
		ExposureUS: 500_000,
	}
}

// Snapshot is a byte-copy of SharedState's exported fields plus the
// currently filtered table lengths, safe to read without holding mu
// (spec.md GLOSSARY "Snapshot").
type Snapshot struct {
	Running     bool
	Initialized bool
	Connected   bool
	Shooting    bool
	Description string

	IsoIndex      int
	ExposureIndex int
	ExposureUS    int64

	DelayUS    int64
	IntervalUS int64

	Frames      int
	FramesTaken int

	ShutterTableLen int
	IsoTableLen     int
}

// Snapshot takes the state mutex, copies every exported field, and releases
// it before returning — callers must never render or block while holding
// the lock themselves.
func (s *SharedState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Running:         s.Running,
		Initialized:     s.Initialized,
		Connected:       s.Connected,
		Shooting:        s.Shooting,
		Description:     s.Description,
		IsoIndex:        s.IsoIndex,
		ExposureIndex:   s.ExposureIndex,
		ExposureUS:      s.ExposureUS,
		DelayUS:         s.DelayUS,
		IntervalUS:      s.IntervalUS,
		Frames:          s.Frames,
		FramesTaken:     s.FramesTaken,
		ShutterTableLen: len(s.shutterTable),
		IsoTableLen:     len(s.isoTable),
	}
}

// SetDelayUS, SetIntervalUS, SetFrames, SetExposureIndex, SetExposureUS and
// SetIsoIndex are the setter functions spec.md §5 allows the HTTP thread to
// call directly (taking the state mutex) rather than routing through the
// command queue, since they only ever touch SharedState fields.

func (s *SharedState) SetDelayUS(v int64) {
	s.mu.Lock()
	s.DelayUS = v
	s.mu.Unlock()
}

func (s *SharedState) SetIntervalUS(v int64) {
	s.mu.Lock()
	s.IntervalUS = v
	s.mu.Unlock()
}

func (s *SharedState) SetFrames(v int) {
	s.mu.Lock()
	s.Frames = v
	s.mu.Unlock()
}

func (s *SharedState) SetExposureIndex(v int) {
	s.mu.Lock()
	s.ExposureIndex = v
	s.mu.Unlock()
}

func (s *SharedState) SetExposureUS(v int64) {
	s.mu.Lock()
	s.ExposureUS = v
	s.mu.Unlock()
}

func (s *SharedState) SetIsoIndex(v int) {
	s.mu.Lock()
	s.IsoIndex = v
	s.mu.Unlock()
}

// ShutterLabels returns the labels of the currently filtered shutter table,
// in camera-advertised order, for HTTP rendering.
func (s *SharedState) ShutterLabels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.shutterTable))
	for i, e := range s.shutterTable {
		out[i] = e.Label
	}
	return out
}

// IsoLabels mirrors ShutterLabels for the filtered ISO table.
func (s *SharedState) IsoLabels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.isoTable))
	for i, e := range s.isoTable {
		out[i] = e.Label
	}
	return out
}

// withLock runs fn with mu held. The dispatcher's command handlers call
// this, as does Controller.Stop from any goroutine; it exists so they read
// a consistent view of multiple fields without a snapshot round-trip.
func (s *SharedState) withLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
