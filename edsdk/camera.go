package edsdk

/*
#cgo CFLAGS: -I/usr/local/include/EDSDK
#cgo LDFLAGS: -L/usr/local/lib -lEDSDK
#include <stdlib.h>
#include <EDSDK.h>
#include <EDSDKTypes.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/lordadamson/cgo.wchar"
)

// EdsError is a vendor error code with nice formatting, in the style of
// andor/sdk2.DRVError: a numeric code plus a human name looked up from a
// package-level table.
type EdsError uint32

// errCodes names the subset of EDS_ERR_* codes this package's call sites can
// actually return; EDSDK's full table is much larger.
var errCodes = map[EdsError]string{
	0x00000000: "EDS_ERR_OK",
	0x00000002: "EDS_ERR_INVALID_PARAMETER",
	0x00000004: "EDS_ERR_INVALID_HANDLE",
	0x00000006: "EDS_ERR_INVALID_POINTER",
	0x00000008: "EDS_ERR_INVALID_RANGE",
	0x00000082: "EDS_ERR_DEVICE_NOT_FOUND",
	0x00000083: "EDS_ERR_DEVICE_BUSY",
	0x00000085: "EDS_ERR_SESSION_NOT_OPEN",
	0x00000086: "EDS_ERR_SESSION_ALREADY_OPEN",
	0x000000a1: "EDS_ERR_COMM_DISCONNECTED",
	0x000000a2: "EDS_ERR_COMM_DEVICE_INCOMPATIBLE",
}

func (e EdsError) Error() string {
	if s, ok := errCodes[e]; ok {
		return fmt.Sprintf("%#x - %s", uint32(e), s)
	}
	return fmt.Sprintf("%#x - EDS_ERR_UNKNOWN", uint32(e))
}

// edsErr returns nil for EDS_ERR_OK, otherwise an EdsError.
func edsErr(code C.EdsError) error {
	if code == C.EDS_ERR_OK {
		return nil
	}
	return EdsError(code)
}

// Camera binds EDSDK through cgo. Only one Camera may be in use at a time
// within a process, matching the controller's single-handle design; neither
// this package nor capture enforces it (cmd/intervalometer creates one).
type Camera struct {
	mu      sync.Mutex
	handles map[uintptr]C.EdsCameraRef
	next    uintptr
}

// NewCamera returns an SDK backed by the real EDSDK shared library.
func NewCamera() *Camera {
	return &Camera{handles: make(map[uintptr]C.EdsCameraRef)}
}

func (c *Camera) LoadLibrary() error {
	return edsErr(C.EdsInitializeSDK())
}

func (c *Camera) UnloadLibrary() error {
	return edsErr(C.EdsTerminateSDK())
}

func (c *Camera) EnumerateCameras() ([]Device, error) {
	var list C.EdsCameraListRef
	if err := edsErr(C.EdsGetCameraList(&list)); err != nil {
		return nil, err
	}
	defer C.EdsRelease(C.EdsBaseRef(list))

	var count C.EdsUInt32
	if err := edsErr(C.EdsGetChildCount(C.EdsBaseRef(list), &count)); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, int(count))
	added := make([]uintptr, 0, int(count))
	releaseAdded := func() {
		for _, h := range added {
			C.EdsRelease(C.EdsBaseRef(c.handles[h]))
			delete(c.handles, h)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := C.EdsUInt32(0); i < count; i++ {
		var ref C.EdsCameraRef
		if err := edsErr(C.EdsGetChildAtIndex(C.EdsBaseRef(list), C.EdsInt32(i), &ref)); err != nil {
			releaseAdded()
			return nil, err
		}

		var info C.EdsDeviceInfo
		if err := edsErr(C.EdsGetDeviceInfo(ref, &info)); err != nil {
			C.EdsRelease(C.EdsBaseRef(ref))
			releaseAdded()
			return nil, err
		}

		desc, err := wcharDescription(&info)
		if err != nil {
			C.EdsRelease(C.EdsBaseRef(ref))
			releaseAdded()
			return nil, err
		}

		h := c.next
		c.next++
		c.handles[h] = ref
		added = append(added, h)
		devices = append(devices, Device{Ref: h, Description: desc})
	}
	return devices, nil
}

// wcharDescription converts EdsDeviceInfo.szDeviceDescription, a wide-char
// buffer on the Windows build of EDSDK, to a Go string.
func wcharDescription(info *C.EdsDeviceInfo) (string, error) {
	ptr := unsafe.Pointer(&info.szDeviceDescription[0])
	ws := wchar.FromUnsafePointer(ptr)
	return wchar.WcharStringToGoString(ws)
}

func (c *Camera) ref(d Device) (C.EdsCameraRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.handles[d.Ref]
	if !ok {
		return nil, EdsError(0x00000004) // EDS_ERR_INVALID_HANDLE
	}
	return ref, nil
}

func (c *Camera) OpenSession(d Device) error {
	ref, err := c.ref(d)
	if err != nil {
		return err
	}
	return edsErr(C.EdsOpenSession(ref))
}

func (c *Camera) CloseSession(d Device) error {
	ref, err := c.ref(d)
	if err != nil {
		return err
	}
	return edsErr(C.EdsCloseSession(ref))
}

func (c *Camera) PropertyDesc(d Device, prop PropertyID) ([]uint32, error) {
	ref, err := c.ref(d)
	if err != nil {
		return nil, err
	}

	var desc C.EdsPropertyDesc
	if err := edsErr(C.EdsGetPropertyDesc(ref, C.EdsPropertyID(prop), &desc)); err != nil {
		return nil, err
	}

	out := make([]uint32, 0, int(desc.numElements))
	for i := 0; i < int(desc.numElements); i++ {
		out = append(out, uint32(desc.propDesc[i]))
	}
	return out, nil
}

func (c *Camera) SetProperty(d Device, prop PropertyID, value uint32) error {
	ref, err := c.ref(d)
	if err != nil {
		return err
	}
	v := C.EdsUInt32(value)
	return edsErr(C.EdsSetPropertyData(C.EdsBaseRef(ref), C.EdsPropertyID(prop), 0,
		C.EdsUInt32(unsafe.Sizeof(v)), unsafe.Pointer(&v)))
}

func (c *Camera) GetProperty(d Device, prop PropertyID) (uint32, error) {
	ref, err := c.ref(d)
	if err != nil {
		return 0, err
	}
	var v C.EdsUInt32
	if err := edsErr(C.EdsGetPropertyData(C.EdsBaseRef(ref), C.EdsPropertyID(prop), 0,
		C.EdsUInt32(unsafe.Sizeof(v)), unsafe.Pointer(&v))); err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func (c *Camera) PressShutter(d Device, button ShutterButton) error {
	ref, err := c.ref(d)
	if err != nil {
		return err
	}
	return edsErr(C.EdsSendCommand(ref, C.kEdsCameraCommand_PressShutterButton, C.EdsInt32(button)))
}

func (c *Camera) UILock(d Device) error {
	ref, err := c.ref(d)
	if err != nil {
		return err
	}
	return edsErr(C.EdsSendStatusCommand(ref, C.kEdsCameraStatusCommand_UILock, 0))
}

func (c *Camera) UIUnlock(d Device) error {
	ref, err := c.ref(d)
	if err != nil {
		return err
	}
	return edsErr(C.EdsSendStatusCommand(ref, C.kEdsCameraStatusCommand_UIUnLock, 0))
}

// RegisterEventHandlers wires the object/property/state callbacks. EDSDK
// requires these be plain C function pointers, so the real binding routes
// through the small cgo exports in events.go; h is stored in a package-level
// table keyed by d.Ref, and that same value is passed as each handler's
// context pointer so the trampoline can look the right EventHandlers back up.
func (c *Camera) RegisterEventHandlers(d Device, h EventHandlers) error {
	ref, err := c.ref(d)
	if err != nil {
		return err
	}
	registerHandlers(d.Ref, h)
	ctx := unsafe.Pointer(d.Ref)
	if err := edsErr(C.EdsSetObjectEventHandler(ref, C.kEdsObjectEvent_All, C.EdsObjectEventHandler(C.goObjectEventTrampoline), ctx)); err != nil {
		return err
	}
	if err := edsErr(C.EdsSetPropertyEventHandler(ref, C.kEdsPropertyEvent_All, C.EdsPropertyEventHandler(C.goPropertyEventTrampoline), ctx)); err != nil {
		return err
	}
	return edsErr(C.EdsSetCameraStateEventHandler(ref, C.kEdsStateEvent_All, C.EdsStateEventHandler(C.goStateEventTrampoline), ctx))
}

func (c *Camera) PumpEvents() error {
	return edsErr(C.EdsGetEvent())
}
