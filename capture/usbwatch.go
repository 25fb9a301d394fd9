package capture

import (
	"log"
	"time"

	"github.com/google/gousb"
)

// canonVendorID is Canon Inc.'s USB vendor ID, shared by every EOS body.
const canonVendorID gousb.ID = 0x04a9

// pollInterval is how often usbwatch re-scans the bus. gousb does not
// expose a cross-platform hotplug callback, so this supplements spec.md's
// manual GET /api/camera trigger with attach/detach polling (SPEC_FULL.md
// DOMAIN STACK, grounded on the original's never-wired
// EdsSetCameraAddedHandler).
const pollInterval = 2 * time.Second

// WatchUSB polls for a Canon EOS vendor-ID device and posts INITIALIZE when
// one appears, DEINITIALIZE when it disappears. It runs until stop is
// closed and should be started on its own goroutine; it never touches the
// camera handle itself, only posts commands through c.
func WatchUSB(c *Controller, stop <-chan struct{}) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	present := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			found, err := canonAttached(ctx)
			if err != nil {
				log.Printf("usbwatch: enumerate: %v", err)
				continue
			}
			if found && !present {
				log.Printf("usbwatch: Canon EOS device attached")
				c.Post(Initialize, nil, true)
			} else if !found && present {
				log.Printf("usbwatch: Canon EOS device detached")
				c.Post(Deinitialize, nil, true)
			}
			present = found
		}
	}
}

func canonAttached(ctx *gousb.Context) (bool, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == canonVendorID
	})
	for _, d := range devices {
		d.Close()
	}
	if err != nil {
		return len(devices) > 0, err
	}
	return len(devices) > 0, nil
}
