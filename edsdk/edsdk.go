// Package edsdk defines the vendor SDK boundary the capture controller drives:
// library load/unload, camera enumeration, session open/close, property
// get/set with descriptor-based enumeration, shutter/UI commands, and the
// event pump that must be called from the thread that loaded the library.
//
// The real implementation (build-tagged on cgo, see camera.go) binds Canon's
// EDSDK the way andor/sdk2 binds Andor's SDK: a typed numeric error with a
// package-level code table, and thin wrappers one-per-call. edsdkmock
// provides an in-memory stand-in for tests and for driving the capture
// package without a physical camera attached.
package edsdk

// PropertyID identifies a camera property in EDSDK's property-ID space.
// Values mirror the kEdsPropID_* constants used by the vendor headers.
type PropertyID uint32

// Property IDs the controller touches, per CameraModel.cpp's GetProperty /
// GetPropertyDesc / SetProperty call sites.
const (
	PropTv          PropertyID = 0x00000406 // kEdsPropID_Tv (shutter speed)
	PropISOSpeed    PropertyID = 0x00000402 // kEdsPropID_ISOSpeed
	PropAEModeSel   PropertyID = 0x00000436 // kEdsPropID_AEModeSelect
	PropSaveTo      PropertyID = 0x0000000b // kEdsPropID_SaveTo
)

// ShutterButton selects how far PressShutter drives the virtual button.
type ShutterButton uint32

const (
	ShutterButtonOff          ShutterButton = 0x00000000
	ShutterButtonHalfway      ShutterButton = 0x00000001
	ShutterButtonCompleteNonAF ShutterButton = 0x00010003
)

// BulbTv is the Tv (shutter speed) parameter value meaning "Bulb", shared by
// every EOS body the original camera.c trailing table documents (0x0C).
const BulbTv uint32 = 0x0c

// Device identifies one enumerated camera. Ref is the opaque vendor handle;
// a real implementation stores an EdsCameraRef behind it, the mock stores an
// index. Description is populated from EdsDeviceInfo.szDeviceDescription.
type Device struct {
	Ref         uintptr
	Description string
}

// EventHandlers are the three optional callbacks spec.md §4.3 describes:
// object/property/state events that must be drained (released) even when
// the controller has nothing to do with them.
type EventHandlers struct {
	OnObject   func(objectRef uintptr)
	OnProperty func(propertyID PropertyID, param uint32)
	OnState    func(event uint32, param uint32)
}

// SDK is the full capability surface the capture controller depends on. It
// is intentionally call-compatible with a single physical camera at a time,
// matching spec.md's single-threaded, single-handle design; a future body
// support would substitute an equivalent SDK, not extend this one.
type SDK interface {
	// LoadLibrary is idempotent; a second call while already loaded is a
	// no-op success, matching EdsInitializeSDK's documented behavior.
	LoadLibrary() error
	UnloadLibrary() error

	// EnumerateCameras returns every currently attached camera. The
	// controller treats anything other than exactly one as a failure.
	EnumerateCameras() ([]Device, error)

	OpenSession(d Device) error
	CloseSession(d Device) error

	// PropertyDesc enumerates the values of prop that d currently
	// advertises as settable, in camera-reported order.
	PropertyDesc(d Device, prop PropertyID) ([]uint32, error)
	SetProperty(d Device, prop PropertyID, value uint32) error
	GetProperty(d Device, prop PropertyID) (uint32, error)

	PressShutter(d Device, button ShutterButton) error
	UILock(d Device) error
	UIUnlock(d Device) error

	RegisterEventHandlers(d Device, h EventHandlers) error

	// PumpEvents services the SDK's internal event queue. Must be called
	// regularly from the thread that called LoadLibrary.
	PumpEvents() error
}
