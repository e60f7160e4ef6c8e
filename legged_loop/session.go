package main

import (
	"encoding/json"
	"fmt"
	"os"

	"legged-ctrl-core/legged_loop/control"
)

const (
	HardwareCAN  = "can"
	HardwareFake = "fake"
)

// Session is one run of the controller: robot parameters, hardware binding
// and operator endpoint.
type Session struct {
	Meta     SessionMeta    `json:"meta"`
	Timing   SessionTiming  `json:"timing"`
	Control  control.Config `json:"control"`
	Hardware HardwareConfig `json:"hardware"`
	Operator OperatorConfig `json:"operator"`
}

type SessionMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// SessionTiming periods override the ones in the control section when set.
type SessionTiming struct {
	DtWBC     float64 `json:"dt_wbc"`
	DtMPC     float64 `json:"dt_mpc"`
	DurationS float64 `json:"duration_s"` // 0 = until interrupted
}

type HardwareConfig struct {
	Kind      string `json:"kind"` // "can" or "fake"
	Interface string `json:"iface,omitempty"`
	MapPath   string `json:"can_map,omitempty"` // empty = built-in map
}

type OperatorConfig struct {
	HTTPAddr string `json:"http_addr,omitempty"` // empty = no operator endpoint
}

// LoadSession loads a session from JSON file
func LoadSession(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("read file: %w", err)
	}
	return ParseSession(data)
}

func ParseSession(data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("unmarshal: %w", err)
	}

	if s.Timing.DtWBC > 0 {
		s.Control.DtWBC = s.Timing.DtWBC
	}
	if s.Timing.DtMPC > 0 {
		s.Control.DtMPC = s.Timing.DtMPC
	}
	s.Control.ApplyDefaults()
	if s.Control.DtWBC == 0 && s.Control.DtMPC == 0 {
		d := control.DefaultConfig()
		s.Control.DtWBC, s.Control.DtMPC = d.DtWBC, d.DtMPC
	}
	if s.Hardware.Kind == "" {
		s.Hardware.Kind = HardwareFake
	}

	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (s Session) Validate() error {
	if s.Timing.DurationS < 0 {
		return fmt.Errorf("invalid duration_s: %f", s.Timing.DurationS)
	}
	switch s.Hardware.Kind {
	case HardwareFake:
	case HardwareCAN:
		if s.Hardware.Interface == "" {
			return fmt.Errorf("hardware kind %q requires iface", s.Hardware.Kind)
		}
	default:
		return fmt.Errorf("unknown hardware kind %q", s.Hardware.Kind)
	}
	if err := s.Control.Validate(); err != nil {
		return fmt.Errorf("control: %w", err)
	}
	return nil
}
