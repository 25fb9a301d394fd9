package httpserver

import (
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/bdube/intervalometer/capture"
	"github.jpl.nasa.gov/bdube/intervalometer/server"
	"github.jpl.nasa.gov/bdube/intervalometer/util"
)

// Server wires a capture.Controller to the route table spec.md §6
// describes. It holds no camera state of its own; every handler either
// reads a fresh snapshot or posts a command.
type Server struct {
	ctrl    *capture.Controller
	webRoot string
	limiter *rate.Limiter
}

// New returns a Server ready to be handed to (*Server).Routes.
// webRoot is the directory served under /assets/*, per the --web-root flag
// (spec.md §6 "CLI").
func New(ctrl *capture.Controller, webRoot string) *Server {
	return &Server{
		ctrl:    ctrl,
		webRoot: webRoot,
		// Ten mutating requests/sec with a burst of five: the UI only ever
		// issues one command at a time from a single browser, this just
		// keeps a runaway client script from flooding the dispatcher queue.
		limiter: rate.NewLimiter(10, 5),
	}
}

// Routes assembles the chi router for the method/path table in spec.md §6.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(notFound)

	r.Get("/", s.handleIndex)
	r.Get("/assets/*", s.handleAssets)
	r.Get("/api/camera", s.handleGetCamera)
	r.Get("/api/camera/state", s.handleGetState)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/api/camera/connect", s.handleConnect)
		r.Post("/api/camera/disconnect", s.handleDisconnect)
		r.Post("/api/camera/start-shoot", s.handleStartShoot)
		r.Post("/api/camera/stop-shoot", s.handleStopShoot)
		r.Post("/api/camera/take-picture", s.handleTakePicture)
		r.Post("/api/camera/state/delay", s.handleStateInt("delay"))
		r.Post("/api/camera/state/interval", s.handleStateInt("interval"))
		r.Post("/api/camera/state/frames", s.handleStateInt("frames"))
		r.Post("/api/camera/state/exposure", s.handleStateExposure)
		r.Post("/api/camera/state/iso", s.handleStateIso)
	})

	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("Not Found"))
}

func (s *Server) viewModel() viewModel {
	snap := s.ctrl.Snapshot()
	return newViewModel(snap, s.ctrl.State().ShutterLabels(), s.ctrl.State().IsoLabels())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPage(w, s.viewModel()); err != nil {
		log.Printf("httpserver: render page: %v", err)
	}
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	server.ReplyWithFile(w, r, name, s.webRoot)
}

// handleGetCamera posts INITIALIZE synchronously and returns the camera
// panel fragment (spec.md §6 "GET /api/camera").
func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Post(capture.Initialize, nil, false)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderCamera(w, s.viewModel()); err != nil {
		log.Printf("httpserver: render camera: %v", err)
	}
}

// handleGetState implements the 204-while-shooting poll endpoint (spec.md
// §6 "GET /api/camera/state").
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	vm := s.viewModel()
	if vm.Snap.Shooting {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderContent(w, vm); err != nil {
		log.Printf("httpserver: render content: %v", err)
	}
}

func (s *Server) replyWithContent(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderContent(w, s.viewModel()); err != nil {
		log.Printf("httpserver: render content: %v", err)
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Post(capture.Connect, nil, false)
	s.replyWithContent(w)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Post(capture.Disconnect, nil, false)
	s.replyWithContent(w)
}

func (s *Server) handleStartShoot(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Post(capture.StartShooting, nil, false)
	s.replyWithContent(w)
}

// handleStopShoot posts STOP_SHOOTING asynchronously per spec.md §6, which
// is safe here specifically because Controller.Post special-cases that tag
// to take effect immediately rather than waiting behind the queue.
func (s *Server) handleStopShoot(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Post(capture.StopShooting, nil, true)
	s.replyWithContent(w)
}

func (s *Server) handleTakePicture(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Post(capture.TakePicture, nil, false)
	s.replyWithContent(w)
}

// handleStateInt returns a handler for the generic delay/interval/frames
// fragments: parse the form field as a number (seconds for delay and
// interval, fractions accepted; frames is truncated to an integer count),
// clamp negatives to 0, apply, and return the inputs fragment (spec.md §6, modeled
// on http.c's handle_input / handle_input_delay / handle_input_frames).
func (s *Server) handleStateInt(field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		raw := r.FormValue(field)
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "bad "+field, http.StatusBadRequest)
			return
		}
		value = util.Clamp(value, 0, math.MaxFloat64)
		us := util.SecsToDuration(value).Microseconds()
		if field == "frames" {
			s.ctrl.State().SetFrames(int(value))
		} else if field == "delay" {
			s.ctrl.State().SetDelayUS(us)
		} else {
			s.ctrl.State().SetIntervalUS(us)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := renderInputs(w, s.viewModel()); err != nil {
			log.Printf("httpserver: render inputs: %v", err)
		}
	}
}

// handleStateExposure implements spec.md §6's exposure row: `exposure` is
// an index, `exposure-custom` an optional seconds value for Bulb mode.
func (s *Server) handleStateExposure(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if raw := r.FormValue("exposure"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			http.Error(w, "bad exposure index", http.StatusBadRequest)
			return
		}
		s.ctrl.State().SetExposureIndex(idx)
	}
	if raw := r.FormValue("exposure-custom"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs < 0 {
			http.Error(w, "bad exposure-custom", http.StatusBadRequest)
			return
		}
		s.ctrl.State().SetExposureUS(util.SecsToDuration(secs).Microseconds())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderExposure(w, s.viewModel()); err != nil {
		log.Printf("httpserver: render exposure: %v", err)
	}
}

func (s *Server) handleStateIso(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	idx, err := strconv.Atoi(r.FormValue("iso"))
	if err != nil || idx < 0 {
		http.Error(w, "bad iso index", http.StatusBadRequest)
		return
	}
	s.ctrl.State().SetIsoIndex(idx)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderInputs(w, s.viewModel()); err != nil {
		log.Printf("httpserver: render inputs: %v", err)
	}
}
