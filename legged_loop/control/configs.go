package control

import (
	"errors"
	"fmt"
)

var (
	// ErrFractionalRatio is returned when dt_mpc is not an exact multiple of dt_wbc.
	ErrFractionalRatio = errors.New("coarse/fine period ratio is not an integer")
	// ErrVectorSize is returned when a configured vector has the wrong length.
	ErrVectorSize = errors.New("vector size mismatch")
	// ErrInvalidConfig covers every other rejected setting.
	ErrInvalidConfig = errors.New("invalid control config")
)

// Mode selects the planning pipeline for the whole session.
type Mode string

const (
	ModeFlat     Mode = "flat"
	ModeExtended Mode = "extended" // 3D terrain: surface planner + filtered 3D frame
)

const gravity = 9.81

// Config holds the control parameters consumed read-only by the loop.
type Config struct {
	DtWBC float64 `json:"dt_wbc"` // fine period, s
	DtMPC float64 `json:"dt_mpc"` // coarse period, s

	NumJoints int     `json:"num_joints"`
	NumFeet   int     `json:"num_feet"`
	HRef      float64 `json:"h_ref"` // nominal base height, m
	Mass      float64 `json:"mass"`  // kg

	FilterCutoffHz float64 `json:"filter_cutoff_hz"`

	// Gains are given per leg (3 values, replicated) or per joint.
	KpMain      []float64 `json:"kp_main"`
	KdMain      []float64 `json:"kd_main"`
	KffMain     float64   `json:"kff_main"`
	SafeDamping float64   `json:"safe_damping"`

	Mode Mode `json:"mode"`

	// FootstepMPC enables the solver variant that also optimises footholds
	// and needs target footsteps, foot trajectories and lift-off times.
	FootstepMPC           bool `json:"footstep_mpc"`
	FootstepOverrideAfter int  `json:"footstep_override_after"`

	Demonstration bool `json:"demonstration"`

	InitialJoints []float64 `json:"initial_joints"`

	DiagnosticsEvery int `json:"diagnostics_every"` // ticks between DEBUG diagnostics, 0 = default, negative = off
}

// DefaultConfig returns a 12-joint quadruped at 1 kHz / 50 Hz.
func DefaultConfig() Config {
	return Config{
		DtWBC:                 0.001,
		DtMPC:                 0.02,
		NumJoints:             12,
		NumFeet:               4,
		HRef:                  0.24,
		Mass:                  2.5,
		FilterCutoffHz:        15.0,
		KpMain:                []float64{3.0, 3.0, 3.0},
		KdMain:                []float64{0.3, 0.3, 0.3},
		KffMain:               1.0,
		SafeDamping:           0.1,
		Mode:                  ModeFlat,
		FootstepOverrideAfter: 100,
		InitialJoints:         []float64{0.0, 0.764, -1.407, 0.0, 0.764, -1.407, 0.0, 0.764, -1.407, 0.0, 0.764, -1.407},
		DiagnosticsEvery:      1000,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.NumJoints == 0 {
		c.NumJoints = d.NumJoints
	}
	if c.NumFeet == 0 {
		c.NumFeet = d.NumFeet
	}
	if c.HRef == 0 {
		c.HRef = d.HRef
	}
	if c.Mass == 0 {
		c.Mass = d.Mass
	}
	if c.FilterCutoffHz == 0 {
		c.FilterCutoffHz = d.FilterCutoffHz
	}
	if c.KpMain == nil {
		c.KpMain = d.KpMain
	}
	if c.KdMain == nil {
		c.KdMain = d.KdMain
	}
	if c.KffMain == 0 {
		c.KffMain = d.KffMain
	}
	if c.SafeDamping == 0 {
		c.SafeDamping = d.SafeDamping
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.FootstepOverrideAfter == 0 {
		c.FootstepOverrideAfter = d.FootstepOverrideAfter
	}
	if c.DiagnosticsEvery == 0 {
		c.DiagnosticsEvery = d.DiagnosticsEvery
	}
	if c.InitialJoints == nil && c.NumJoints == d.NumJoints {
		c.InitialJoints = d.InitialJoints
	}
}

// Validate rejects configurations the loop cannot run with. It is called
// once at startup; nothing in the per-tick path re-checks these.
func (c Config) Validate() error {
	if c.DtWBC <= 0 || c.DtMPC <= 0 {
		return fmt.Errorf("%w: periods must be positive (dt_wbc=%g dt_mpc=%g)", ErrInvalidConfig, c.DtWBC, c.DtMPC)
	}
	if _, err := RatioFromPeriods(c.DtMPC, c.DtWBC); err != nil {
		return err
	}
	if c.NumFeet <= 0 || c.NumJoints != 3*c.NumFeet {
		return fmt.Errorf("%w: num_joints=%d must be 3*num_feet (num_feet=%d)", ErrVectorSize, c.NumJoints, c.NumFeet)
	}
	if c.FilterCutoffHz <= 0 {
		return fmt.Errorf("%w: filter_cutoff_hz must be positive", ErrInvalidConfig)
	}
	if err := c.checkGains("kp_main", c.KpMain); err != nil {
		return err
	}
	if err := c.checkGains("kd_main", c.KdMain); err != nil {
		return err
	}
	if c.KffMain <= 0 {
		return fmt.Errorf("%w: kff_main must be positive", ErrInvalidConfig)
	}
	if c.SafeDamping <= 0 {
		return fmt.Errorf("%w: safe_damping must be positive", ErrInvalidConfig)
	}
	if len(c.InitialJoints) != c.NumJoints {
		return fmt.Errorf("%w: initial_joints has %d values, want %d", ErrVectorSize, len(c.InitialJoints), c.NumJoints)
	}
	switch c.Mode {
	case ModeFlat, ModeExtended:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.Mass <= 0 {
		return fmt.Errorf("%w: mass must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c Config) checkGains(name string, g []float64) error {
	if len(g) != 3 && len(g) != c.NumJoints {
		return fmt.Errorf("%w: %s has %d values, want 3 or %d", ErrVectorSize, name, len(g), c.NumJoints)
	}
	for _, v := range g {
		if v < 0 {
			return fmt.Errorf("%w: %s must be non-negative", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Ratio is the number of fine ticks per coarse tick.
func (c Config) Ratio() (int, error) {
	return RatioFromPeriods(c.DtMPC, c.DtWBC)
}

// JointGains expands per-leg gains to one value per joint.
func (c Config) JointGains() (kp, kd []float64) {
	return expandPerLeg(c.KpMain, c.NumJoints), expandPerLeg(c.KdMain, c.NumJoints)
}

func expandPerLeg(g []float64, n int) []float64 {
	if len(g) == n {
		return cloneFloats(g)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = g[i%len(g)]
	}
	return out
}
