package edsdk

/*
#include <EDSDK.h>
*/
import "C"

import (
	"log"
	"sync"
	"unsafe"
)

// handlerMu guards handlersByDevice, the dispatch table the exported C
// trampolines below consult. EDSDK calls these on its own internal thread,
// so the lock is load-bearing, not decorative.
var (
	handlerMu        sync.Mutex
	handlersByDevice = map[uintptr]EventHandlers{}
)

func registerHandlers(device uintptr, h EventHandlers) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	handlersByDevice[device] = h
}

func lookupHandlers(device uintptr) (EventHandlers, bool) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	h, ok := handlersByDevice[device]
	return h, ok
}

// The three trampolines below satisfy EDSDK's requirement that event
// handlers be plain C function pointers; cgo cannot hand a Go closure
// directly to EdsSetObjectEventHandler and friends, so each callback
// re-enters Go through an //export function. RegisterEventHandlers passes
// the device handle as the context pointer so the trampoline can look up
// which EventHandlers to invoke; every event is logged and, for object
// events, the passed reference is released, per spec.md §4.3: "release the
// passed opaque reference and otherwise log."

//export goObjectEventTrampoline
func goObjectEventTrampoline(event C.EdsObjectEvent, object C.EdsBaseRef, context unsafe.Pointer) C.EdsError {
	device := uintptr(context)
	log.Printf("edsdk: object event %#x on device %d", uint32(event), device)
	if h, ok := lookupHandlers(device); ok && h.OnObject != nil {
		h.OnObject(uintptr(unsafe.Pointer(object)))
	}
	if object != nil {
		C.EdsRelease(object)
	}
	return C.EDS_ERR_OK
}

//export goPropertyEventTrampoline
func goPropertyEventTrampoline(event C.EdsUInt32, propertyID C.EdsUInt32, param C.EdsUInt32, context unsafe.Pointer) C.EdsError {
	device := uintptr(context)
	log.Printf("edsdk: property event %#x (property %#x, param %d) on device %d", uint32(event), uint32(propertyID), uint32(param), device)
	if h, ok := lookupHandlers(device); ok && h.OnProperty != nil {
		h.OnProperty(PropertyID(propertyID), uint32(param))
	}
	return C.EDS_ERR_OK
}

//export goStateEventTrampoline
func goStateEventTrampoline(event C.EdsStateEvent, param C.EdsUInt32, context unsafe.Pointer) C.EdsError {
	device := uintptr(context)
	log.Printf("edsdk: state event %#x (param %d) on device %d", uint32(event), uint32(param), device)
	if h, ok := lookupHandlers(device); ok && h.OnState != nil {
		h.OnState(uint32(event), uint32(param))
	}
	return C.EDS_ERR_OK
}
