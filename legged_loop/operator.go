package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"legged-ctrl-core/legged_loop/control"
	"legged-ctrl-core/utils"
)

// xMutex is a non-blocking exclusive lock: a second operator is turned
// away instead of queued.
type xMutex struct {
	lck   sync.Mutex
	inuse bool
}

func (xm *xMutex) Lock() error {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	if xm.inuse {
		return errors.New("operator already connected")
	}
	xm.inuse = true
	return nil
}

func (xm *xMutex) Unlock() {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	xm.inuse = false
}

// OperatorMessage is one joystick update on the /control socket.
type OperatorMessage struct {
	VRef     [6]float64 `json:"v_ref"`
	GaitCode int        `json:"gait_code"`
	Stop     bool       `json:"stop"`
	L1       bool       `json:"l1"`
	PRef     [6]float64 `json:"p_ref"`
}

// OperatorInput supplies the joystick input for each fine tick.
type OperatorInput interface {
	Joystick() control.JoystickInput
}

// OperatorState holds the latest joystick input for the control loop.
type OperatorState struct {
	mu      sync.RWMutex
	js      control.JoystickInput
	updated time.Time
}

func (o *OperatorState) Set(m OperatorMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.js = control.JoystickInput{VRef: m.VRef, GaitCode: m.GaitCode, Stop: m.Stop, L1: m.L1, PRef: m.PRef}
	o.updated = time.Now()
}

// Disconnect zeroes the reference and engages stop.
func (o *OperatorState) Disconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.js = control.JoystickInput{Stop: true}
	o.updated = time.Now()
}

// Joystick returns the input for one tick. The gait code is consumed: it
// is a request, not a level.
func (o *OperatorState) Joystick() control.JoystickInput {
	o.mu.Lock()
	defer o.mu.Unlock()
	js := o.js
	o.js.GaitCode = 0
	return js
}

// OperatorServer serves /control (websocket, one operator at a time) and
// /status.json.
type OperatorServer struct {
	state  *OperatorState
	status func() control.Diagnostics
	log    *utils.Logger

	upgrader websocket.Upgrader
	xm       xMutex
}

func NewOperatorServer(state *OperatorState, status func() control.Diagnostics, log *utils.Logger) *OperatorServer {
	return &OperatorServer{
		state:  state,
		status: status,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *OperatorServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handleControl)
	mux.HandleFunc("/status.json", s.handleStatus)
	return mux
}

func (s *OperatorServer) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache")
	if err := s.xm.Lock(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer s.xm.Unlock()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("upgrade websocket: %v", err)
		return
	}
	defer ws.Close()
	s.log.Info("operator connected from %s", r.RemoteAddr)

	for {
		var m OperatorMessage
		if err := ws.ReadJSON(&m); err != nil {
			s.log.Warn("operator socket closed: %v; stop engaged", err)
			s.state.Disconnect()
			return
		}
		s.state.Set(m)
		s.log.Trace("operator v_ref=%v gait=%d stop=%v l1=%v", m.VRef, m.GaitCode, m.Stop, m.L1)
	}
}

func (s *OperatorServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	d := s.status()
	_ = json.NewEncoder(w).Encode(struct {
		Session     string
		Tick        int
		Pipeline    string
		Overruns    int
		MPCSolves   int
		MPCFailures int
		Faulted     bool
		FaultCode   string
		FaultTick   int
	}{
		Session:     d.Session,
		Tick:        d.Tick,
		Pipeline:    d.Pipeline,
		Overruns:    d.Overruns,
		MPCSolves:   d.MPC.Solves,
		MPCFailures: d.MPC.Failures,
		Faulted:     d.Security.Faulted,
		FaultCode:   d.Security.Code.String(),
		FaultTick:   d.Security.Tick,
	})
}
