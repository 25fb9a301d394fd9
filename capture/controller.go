// Package capture implements the capture controller: the single-threaded
// command dispatcher that owns the camera handle, the shared state record,
// the shutter/ISO lookup tables, and the shoot state machine (spec.md §3,
// §4.3). Every vendor SDK call in the process originates from the goroutine
// that calls Controller.Run.
package capture

import (
	"log"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/intervalometer/edsdk"
	"github.jpl.nasa.gov/bdube/intervalometer/queue"
	"github.jpl.nasa.gov/bdube/intervalometer/timing"
)

// Command tags, the closed set from spec.md §4.3's taxonomy table.
const (
	NoOp queue.Tag = iota
	Initialize
	Deinitialize
	Connect
	Disconnect
	InitialDelay
	IntervalDelay
	TakePicture
	StartShooting
	StopShooting
	Terminate
)

var commandNames = map[queue.Tag]string{
	NoOp:          "NO_OP",
	Initialize:    "INITIALIZE",
	Deinitialize:  "DEINITIALIZE",
	Connect:       "CONNECT",
	Disconnect:    "DISCONNECT",
	InitialDelay:  "INITIAL_DELAY",
	IntervalDelay: "INTERVAL_DELAY",
	TakePicture:   "TAKE_PICTURE",
	StartShooting: "START_SHOOTING",
	StopShooting:  "STOP_SHOOTING",
	Terminate:     "TERMINATE",
}

// dequeueTick is the dispatcher's poll interval for the idle case, used to
// pump the vendor SDK's event queue even when no command is pending
// (spec.md §5, "dequeue timeout (500 ms)").
const dequeueTick = 500_000 // microseconds

func dequeueTickDuration() time.Duration {
	return time.Duration(dequeueTick) * time.Microsecond
}

// Controller is the dispatch loop. It must run on the process's main OS
// thread wherever the vendor SDK demands that (spec.md §9 "Main-thread
// pinning"); Run itself is indifferent to which thread it's called from,
// the caller is responsible for the pinning (see cmd/intervalometer).
type Controller struct {
	sdk   edsdk.SDK
	state *SharedState
	queue *queue.Queue
	ring  *timing.LatencyRing

	device    edsdk.Device
	hasDevice bool

	// cancelMu guards cancelCh, the current sequence's cancellation
	// channel. Unlike the rest of the controller's working state this one
	// field is intentionally reachable from any thread: spec.md §9 notes
	// the original's cross-thread "abort_timer" call was a hack around a
	// non-cancellable sleep, and the fix isn't to avoid crossing threads,
	// it's to make the thing you cross with safe to touch concurrently.
	// Stop closes cancelCh directly; the dispatcher replaces it when a
	// sequence starts (startShooting) and otherwise only reads it.
	cancelMu sync.Mutex
	cancelCh chan struct{}

	// pendingMu guards pending, the self-chained command a handler queues
	// for the dispatcher's own next iteration (see dispatchSelf). It never
	// holds more than one entry in practice - each handler in the shoot
	// sequence chains exactly one next step - but a slice keeps Run's
	// drain loop simple.
	pendingMu sync.Mutex
	pending   []queue.Command
}

// NewController wires sdk and the caller's state to an empty command queue
// and returns the assembled controller.
func NewController(sdk edsdk.SDK, state *SharedState) *Controller {
	return &Controller{
		sdk:   sdk,
		state: state,
		queue: queue.New(),
		ring:  timing.NewLatencyRing(),
	}
}

// Post is the HTTP front-end's only way to influence the camera: enqueue a
// command, and if sync, block until its handler has run (spec.md §4.2
// post, §5 "Synchronous-from-HTTP pattern").
//
// StopShooting is special-cased: the dispatcher may be blocked inside a
// multi-second sleep inside INITIAL_DELAY or INTERVAL_DELAY, and queueing
// behind that would make Stop only take effect after the sleep completes
// on its own. Post applies StopShooting's effect immediately through the
// cancellation channel instead of waiting for the dispatcher to reach it.
func (c *Controller) Post(tag queue.Tag, payload interface{}, async bool) {
	if tag == StopShooting {
		c.Stop()
		return
	}
	c.queue.Post(tag, payload, async)
}

// Stop implements STOP_SHOOTING directly: clear Shooting and cancel
// whatever sleep the dispatcher is currently inside. Safe to call from any
// goroutine.
func (c *Controller) Stop() {
	c.state.withLock(func() { c.state.Shooting = false })
	c.cancelMu.Lock()
	if c.cancelCh != nil {
		close(c.cancelCh)
		c.cancelCh = nil
	}
	c.cancelMu.Unlock()
}

// Snapshot exposes the controller's SharedState for HTTP rendering.
func (c *Controller) Snapshot() Snapshot {
	return c.state.Snapshot()
}

// State returns the underlying SharedState so the HTTP layer can reach the
// setter methods directly, per spec.md §5's "setter functions that take
// the state mutex" path that bypasses the command queue entirely.
func (c *Controller) State() *SharedState {
	return c.state
}

var handlerTable = map[queue.Tag]func(*Controller, interface{}){
	NoOp:          (*Controller).noOp,
	Initialize:    (*Controller).initialize,
	Deinitialize:  (*Controller).deinitialize,
	Connect:       (*Controller).connect,
	Disconnect:    (*Controller).disconnect,
	InitialDelay:  (*Controller).initialDelay,
	IntervalDelay: (*Controller).intervalDelay,
	TakePicture:   (*Controller).takePicture,
	StartShooting: (*Controller).startShooting,
	StopShooting:  (*Controller).stopShooting,
	Terminate:     (*Controller).terminate,
}

// Run is the dispatch loop. It returns once Running flips false, which only
// the TERMINATE handler and an external SIGINT/SIGTERM path (via
// Post(Terminate, ...)) cause.
func (c *Controller) Run() {
	for c.isRunning() {
		if cmd, ok := c.takePending(); ok {
			c.dispatch(cmd.Tag, cmd.Payload)
			continue
		}

		slot, cmd, ok := c.queue.Dequeue(dequeueTickDuration())
		if !ok {
			if err := c.sdk.PumpEvents(); err != nil {
				log.Printf("capture: event pump: %v", err)
			}
			continue
		}
		c.dispatch(cmd.Tag, cmd.Payload)
		c.queue.Release(slot)
	}
}

func (c *Controller) dispatch(tag queue.Tag, payload interface{}) {
	handler, known := handlerTable[tag]
	if !known {
		log.Printf("capture: unknown command tag %d", tag)
		return
	}
	log.Printf("capture: dispatching %s", commandNames[tag])
	handler(c, payload)
}

func (c *Controller) isRunning() bool {
	return c.state.Snapshot().Running
}

// dispatchSelf chains tag as the dispatcher's own next step, rather than
// through c.queue.Post: handlers that chain the next step of a sequence
// (startShooting -> InitialDelay -> TakePicture -> IntervalDelay -> ...)
// call this instead. Run's loop drains pending ahead of the channel on its
// next iteration, so the handler returns immediately (preserving the
// completion signal a synchronous Post on the *outer* command is waiting
// on) without ever contending for the bounded channel's capacity - posting
// a self-chained step through the channel would let a dispatcher blocked on
// its own enqueue's full-channel send deadlock itself, since nothing else
// is ever going to drain it.
func (c *Controller) dispatchSelf(tag queue.Tag, payload interface{}) {
	c.pendingMu.Lock()
	c.pending = append(c.pending, queue.Command{Tag: tag, Payload: payload})
	c.pendingMu.Unlock()
}

func (c *Controller) takePending() (queue.Command, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pending) == 0 {
		return queue.Command{}, false
	}
	cmd := c.pending[0]
	c.pending = c.pending[1:]
	return cmd, true
}

func (c *Controller) noOp(interface{}) {}

func (c *Controller) initialize(interface{}) {
	already := false
	c.state.withLock(func() { already = c.state.Initialized })

	if !already {
		if err := c.sdk.LoadLibrary(); err != nil {
			log.Printf("capture: load SDK: %v", err)
			return
		}
		c.state.withLock(func() { c.state.Initialized = true })
	}

	devices, err := c.sdk.EnumerateCameras()
	if err != nil {
		log.Printf("capture: enumerate cameras: %v", err)
		c.deinitialize(nil)
		return
	}
	if len(devices) != 1 {
		log.Printf("capture: expected exactly one camera, found %d", len(devices))
		c.deinitialize(nil)
		return
	}

	c.device = devices[0]
	c.hasDevice = true
	c.state.withLock(func() { c.state.Description = devices[0].Description })

	if err := c.sdk.RegisterEventHandlers(c.device, edsdk.EventHandlers{}); err != nil {
		log.Printf("capture: register event handlers: %v", err)
	}
}

func (c *Controller) deinitialize(interface{}) {
	wasInit := false
	c.state.withLock(func() { wasInit = c.state.Initialized })

	if wasInit {
		if err := c.sdk.UnloadLibrary(); err != nil {
			log.Printf("capture: unload SDK: %v", err)
		}
	}

	c.hasDevice = false
	c.state.withLock(func() {
		c.state.Initialized = false
		c.state.Connected = false
		c.state.shutterTable = nil
		c.state.isoTable = nil
	})
}

func (c *Controller) connect(interface{}) {
	alreadyConnected := false
	c.state.withLock(func() { alreadyConnected = c.state.Connected })
	if alreadyConnected {
		return
	}
	if !c.hasDevice {
		log.Printf("capture: connect requested without an enumerated camera")
		return
	}

	if err := c.sdk.OpenSession(c.device); err != nil {
		log.Printf("capture: open session: %v", err)
		c.deinitialize(nil)
		return
	}

	tvValues, err := c.sdk.PropertyDesc(c.device, shutterPropertyID)
	if err != nil {
		log.Printf("capture: read Tv descriptor: %v", err)
	}
	isoValues, err := c.sdk.PropertyDesc(c.device, isoPropertyID)
	if err != nil {
		log.Printf("capture: read ISOSpeed descriptor: %v", err)
	}

	c.state.withLock(func() {
		c.state.shutterTable = filterShutterTable(tvValues)
		c.state.isoTable = filterIsoTable(isoValues)
		c.state.Connected = true
	})

	if err := c.sdk.UILock(c.device); err != nil {
		log.Printf("capture: UI lock: %v", err)
	}

	c.applyExposureProperty()
	c.applyIsoProperty()
}

func (c *Controller) disconnect(interface{}) {
	connected := false
	c.state.withLock(func() { connected = c.state.Connected })
	if !connected {
		return
	}

	if err := c.sdk.UIUnlock(c.device); err != nil {
		log.Printf("capture: UI unlock: %v", err)
	}

	err := c.sdk.CloseSession(c.device)
	c.state.withLock(func() { c.state.Connected = false })
	if err != nil {
		log.Printf("capture: close session: %v", err)
		c.deinitialize(nil)
	}
}

func (c *Controller) currentCancel() chan struct{} {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	return c.cancelCh
}

func (c *Controller) initialDelay(interface{}) {
	var delay int64
	c.state.withLock(func() { delay = c.state.DelayUS })

	if timing.SleepUSCancelable(delay, c.currentCancel()) {
		c.dispatchSelf(TakePicture, nil)
		return
	}
	c.state.withLock(func() { c.state.Shooting = false })
}

func (c *Controller) intervalDelay(interface{}) {
	var interval int64
	c.state.withLock(func() { interval = c.state.IntervalUS })

	if timing.SleepUSCancelable(interval, c.currentCancel()) {
		c.dispatchSelf(TakePicture, nil)
		return
	}
	c.state.withLock(func() { c.state.Shooting = false })
}

func (c *Controller) takePicture(interface{}) {
	var initialized, connected bool
	c.state.withLock(func() {
		initialized, connected = c.state.Initialized, c.state.Connected
	})
	if !initialized || !connected {
		return
	}

	var exposureIndex int
	var exposureUS int64
	var tableLen int
	c.state.withLock(func() {
		exposureIndex = c.state.ExposureIndex
		exposureUS = c.state.ExposureUS
		tableLen = len(c.state.shutterTable)
	})

	ok := c.exposeOnce(exposureIndex, tableLen, exposureUS)

	c.state.withLock(func() {
		if !ok {
			c.state.Shooting = false
			return
		}
		if c.state.Shooting {
			c.state.FramesTaken++
			if c.state.FramesTaken >= c.state.Frames {
				c.state.Shooting = false
			}
		}
	})

	shouldContinue := false
	c.state.withLock(func() { shouldContinue = c.state.Shooting })
	if shouldContinue {
		c.dispatchSelf(IntervalDelay, nil)
	}
}

// exposeOnce runs the native or Bulb exposure algorithm (spec.md §4.3
// "Exposure algorithm") and returns false on an SDK error.
func (c *Controller) exposeOnce(exposureIndex, tableLen int, exposureUS int64) bool {
	if exposureIndex < tableLen {
		if err := c.sdk.PressShutter(c.device, edsdk.ShutterButtonCompleteNonAF); err != nil {
			log.Printf("capture: press shutter: %v", err)
			return false
		}
		if err := c.sdk.PressShutter(c.device, edsdk.ShutterButtonOff); err != nil {
			log.Printf("capture: release shutter: %v", err)
			return false
		}
		return true
	}

	avg := c.ring.AverageResidualUS()
	start := timing.NowUS()
	if err := c.sdk.PressShutter(c.device, edsdk.ShutterButtonCompleteNonAF); err != nil {
		log.Printf("capture: press shutter: %v", err)
		return false
	}
	timing.SleepUS(exposureUS - avg)
	if err := c.sdk.PressShutter(c.device, edsdk.ShutterButtonOff); err != nil {
		log.Printf("capture: release shutter: %v", err)
		return false
	}
	end := timing.NowUS()
	c.ring.AddSample((end - start) - exposureUS)
	return true
}

func (c *Controller) startShooting(interface{}) {
	c.state.withLock(func() {
		c.state.FramesTaken = 0
		c.state.Shooting = true
	})

	c.cancelMu.Lock()
	c.cancelCh = make(chan struct{})
	c.cancelMu.Unlock()

	c.applyExposureProperty()
	c.applyIsoProperty()

	c.dispatchSelf(InitialDelay, nil)
}

// stopShooting keeps STOP_SHOOTING in the handler table so every command
// tag has a handler. Post short-circuits that tag to Stop and never enqueues
// it, and the queue is not reachable outside the controller, so the
// dispatcher does not reach this handler through Post.
func (c *Controller) stopShooting(interface{}) {
	c.Stop()
}

func (c *Controller) terminate(interface{}) {
	c.state.withLock(func() { c.state.Running = false })
}

// applyExposureProperty pushes the current exposure_index selection to the
// camera: the Tv value at that index in the filtered table, or the Bulb
// sentinel for any index past the end (spec.md §4.3 "Property application").
func (c *Controller) applyExposureProperty() {
	if !c.hasDevice {
		return
	}
	var idx, tableLen int
	var value uint32
	c.state.withLock(func() {
		idx = c.state.ExposureIndex
		tableLen = len(c.state.shutterTable)
		if idx < tableLen {
			value = c.state.shutterTable[idx].Value
		} else {
			value = edsdk.BulbTv
		}
	})
	if err := c.sdk.SetProperty(c.device, shutterPropertyID, value); err != nil {
		log.Printf("capture: set Tv: %v", err)
	}
}

// applyIsoProperty mirrors applyExposureProperty for ISO, using the Auto
// sentinel (value 0) for any index past the filtered table's end.
func (c *Controller) applyIsoProperty() {
	if !c.hasDevice {
		return
	}
	var idx, tableLen int
	var value uint32
	c.state.withLock(func() {
		idx = c.state.IsoIndex
		tableLen = len(c.state.isoTable)
		if idx < tableLen {
			value = c.state.isoTable[idx].Value
		} else {
			value = IsoTable[0].Value
		}
	})
	if err := c.sdk.SetProperty(c.device, isoPropertyID, value); err != nil {
		log.Printf("capture: set ISOSpeed: %v", err)
	}
}
