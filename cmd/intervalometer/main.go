// Command intervalometer runs the capture dispatcher on the main OS thread
// and serves the HTTP front-end on a worker, per spec.md §5/§9
// "Main-thread pinning".
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/theckman/yacspin"

	"github.jpl.nasa.gov/bdube/intervalometer/capture"
	"github.jpl.nasa.gov/bdube/intervalometer/edsdk"
	"github.jpl.nasa.gov/bdube/intervalometer/httpserver"
)

const usage = `intervalometer serves a browser control panel for a Canon EOS camera.

Usage:
  intervalometer --web-root <path> [--addr <host:port>]`

func main() {
	runtime.LockOSThread()

	webRoot := pflag.String("web-root", "", "directory of static assets served at /assets/* (required)")
	addr := pflag.String("addr", ":8000", "address to listen on")
	help := pflag.BoolP("help", "h", false, "print usage and exit")
	pflag.Parse()

	if *help {
		fmt.Println(usage)
		pflag.PrintDefaults()
		os.Exit(0)
	}
	if *webRoot == "" {
		fmt.Fprintln(os.Stderr, usage)
		pflag.PrintDefaults()
		os.Exit(1)
	}

	state := capture.NewSharedState()
	ctrl := capture.NewController(edsdk.NewCamera(), state)

	// runStartup does the synchronous first INITIALIZE, starts usbwatch,
	// and brings up the HTTP server, all from a goroutine other than the
	// one Run() executes on: that goroutine's synchronous Post only
	// returns once the dispatcher below has actually processed it, so it
	// must not itself be the thread the dispatcher runs on.
	go runStartup(ctrl, *addr, *webRoot)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("signal received, disconnecting and shutting down")
		ctrl.Post(capture.Disconnect, nil, true)
		ctrl.Post(capture.Deinitialize, nil, true)
		ctrl.Post(capture.Terminate, nil, true)
	}()

	// Run must execute on the thread LockOSThread pinned above, and it
	// must start consuming before any synchronous Post is issued from
	// runStartup or the signal goroutine — calling it here, directly in
	// main rather than behind a startup sequence, is what makes that true.
	ctrl.Run()
}

func runStartup(ctrl *capture.Controller, addr, webRoot string) {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " initializing camera",
		SuffixAutoColon: true,
		Message:         "scanning for a connected body",
	})
	if err == nil {
		spinner.Start()
	}
	ctrl.Post(capture.Initialize, nil, false)
	if err == nil {
		spinner.Stop()
	}
	printStatus(ctrl)

	go capture.WatchUSB(ctrl, nil)

	srv := httpserver.New(ctrl, webRoot)
	log.Printf("listening on %s, assets served from %s", addr, webRoot)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		log.Fatalf("http server: %v", err)
	}
}

func printStatus(ctrl *capture.Controller) {
	snap := ctrl.Snapshot()
	if snap.Initialized {
		color.New(color.FgGreen).Printf("camera found: %s\n", snap.Description)
		return
	}
	color.New(color.FgRed).Println("no camera found at startup")
}
