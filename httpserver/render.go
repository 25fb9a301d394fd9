// Package httpserver is the HTTP front-end collaborator described in
// spec.md §6: it never touches the camera handle, it only reads
// capture.Snapshot and posts commands through capture.Controller.
package httpserver

import (
	"fmt"
	"html/template"
	"io"

	"github.jpl.nasa.gov/bdube/intervalometer/capture"
)

// viewModel is the data handed to the templates below; it's assembled fresh
// from a capture.Snapshot plus the controller's current filtered table
// labels on every render, never cached (spec.md GLOSSARY "Snapshot").
type viewModel struct {
	Snap          capture.Snapshot
	ShutterLabels []string
	IsoLabels     []string
	ExposureLabel string
	CameraLabel   string
}

func newViewModel(snap capture.Snapshot, shutterLabels, isoLabels []string) viewModel {
	cameraLabel := snap.Description
	if cameraLabel == "" {
		cameraLabel = "No cameras detected"
	}
	return viewModel{
		Snap:          snap,
		ShutterLabels: shutterLabels,
		IsoLabels:     isoLabels,
		ExposureLabel: formatExposureLabel(snap, shutterLabels),
		CameraLabel:   cameraLabel,
	}
}

// formatExposureLabel mirrors http.c's render_exposure: a table label when
// exposure_index selects a native speed, otherwise exposure_us rendered as
// seconds or a "1/N" fraction depending on magnitude.
func formatExposureLabel(snap capture.Snapshot, shutterLabels []string) string {
	if snap.ExposureIndex < len(shutterLabels) {
		return shutterLabels[snap.ExposureIndex]
	}
	us := snap.ExposureUS
	if us <= 0 {
		return "0"
	}
	if us >= 300_000 {
		return fmt.Sprintf("%.1f", float64(us)/1_000_000)
	}
	return fmt.Sprintf("1/%d", 1_000_000/us)
}

const templateSource = `
{{define "page"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>intervalometer</title>
<link rel="stylesheet" href="/assets/index.css">
<script src="/assets/htmx.min.js"></script>
</head>
<body>
{{template "content" .}}
<script src="/assets/index.js"></script>
</body>
</html>
{{end}}

{{define "content"}}<div id="content"{{if .Snap.Shooting}} hx-get="/api/camera/state" hx-trigger="every 2s" hx-swap="outerHTML"{{end}}>
{{template "camera" .}}
{{template "inputs" .}}
{{template "actions" .}}
</div>
{{end}}

{{define "camera"}}<div id="camera-content">
<fieldset>
<legend>Camera</legend>
<input type="text" disabled value="{{.CameraLabel}}">
</fieldset>
{{if .Snap.Initialized}}
{{if .Snap.Connected}}
<button hx-post="/api/camera/disconnect" hx-target="#content" hx-swap="outerHTML">Disconnect</button>
{{else}}
<button hx-post="/api/camera/connect" hx-target="#content" hx-swap="outerHTML">Connect</button>
{{end}}
{{else}}
<button hx-get="/api/camera" hx-target="#camera-content" hx-swap="outerHTML">Refresh</button>
{{end}}
</div>
{{end}}

{{define "inputs"}}<div id="inputs-content">
<fieldset>
<legend>Delay (s)</legend>
<input name="delay" type="number" min="0" value="{{secs .Snap.DelayUS}}" hx-post="/api/camera/state/delay" hx-target="#inputs-content" hx-swap="outerHTML">
</fieldset>
<fieldset>
<legend>Exposure</legend>
<select name="exposure" hx-post="/api/camera/state/exposure" hx-target="this" hx-swap="none">
{{range $i, $label := .ShutterLabels}}<option value="{{$i}}"{{if eq $i $.Snap.ExposureIndex}} selected{{end}}>{{$label}}</option>
{{end}}<option value="{{len .ShutterLabels}}"{{if ge .Snap.ExposureIndex (len .ShutterLabels)}} selected{{end}}>Bulb</option>
</select>
<input name="exposure-custom" type="number" step="0.1" min="0" value="{{secs .Snap.ExposureUS}}" hx-post="/api/camera/state/exposure" hx-target="#exposure-content" hx-swap="outerHTML">
<span id="exposure-content">{{.ExposureLabel}}</span>
</fieldset>
<fieldset>
<legend>ISO</legend>
<select name="iso" hx-post="/api/camera/state/iso" hx-target="this" hx-swap="none">
{{range $i, $label := .IsoLabels}}<option value="{{$i}}"{{if eq $i $.Snap.IsoIndex}} selected{{end}}>{{$label}}</option>
{{end}}</select>
</fieldset>
<fieldset>
<legend>Interval (s)</legend>
<input name="interval" type="number" min="0" value="{{secs .Snap.IntervalUS}}" hx-post="/api/camera/state/interval" hx-target="#inputs-content" hx-swap="outerHTML">
</fieldset>
<fieldset>
<legend>Frames</legend>
<input name="frames" type="number" min="0" value="{{.Snap.Frames}}" hx-post="/api/camera/state/frames" hx-target="#inputs-content" hx-swap="outerHTML">
</fieldset>
</div>
{{end}}

{{define "actions"}}<div id="actions-content">
<button hx-post="/api/camera/start-shoot" hx-target="#content" hx-swap="outerHTML"{{if or (not .Snap.Connected) .Snap.Shooting}} disabled{{end}}>Start</button>
<button hx-post="/api/camera/stop-shoot" hx-target="#content" hx-swap="outerHTML"{{if not .Snap.Shooting}} disabled{{end}}>Stop</button>
<button hx-post="/api/camera/take-picture" hx-target="#content" hx-swap="outerHTML"{{if or (not .Snap.Connected) .Snap.Shooting}} disabled{{end}}>Take Picture</button>
<div>frame {{.Snap.FramesTaken}} / {{.Snap.Frames}}</div>
</div>
{{end}}

{{define "exposure"}}<span id="exposure-content">{{.ExposureLabel}}</span>{{end}}
`

var templates = template.Must(template.New("root").Funcs(template.FuncMap{
	"secs": func(us int64) string { return fmt.Sprintf("%g", float64(us)/1_000_000) },
}).Parse(templateSource))

func renderPage(w io.Writer, vm viewModel) error {
	return templates.ExecuteTemplate(w, "page", vm)
}

func renderContent(w io.Writer, vm viewModel) error {
	return templates.ExecuteTemplate(w, "content", vm)
}

func renderCamera(w io.Writer, vm viewModel) error {
	return templates.ExecuteTemplate(w, "camera", vm)
}

func renderInputs(w io.Writer, vm viewModel) error {
	return templates.ExecuteTemplate(w, "inputs", vm)
}

func renderExposure(w io.Writer, vm viewModel) error {
	return templates.ExecuteTemplate(w, "exposure", vm)
}
