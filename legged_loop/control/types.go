package control

import (
	"fmt"
	"reflect"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// GeneralizedState is a configuration/velocity pair: 6 floating-base
// coordinates (position, roll-pitch-yaw) followed by the joint angles.
type GeneralizedState struct {
	Q []float64
	V []float64
}

// RobotState is the estimator output for one fine tick. All representations
// describe the same instant; the estimation adapter replaces the whole value
// at once.
type RobotState struct {
	Tick int

	World      GeneralizedState
	Horizontal GeneralizedState
	Base       GeneralizedState

	HVWindowed []float64 // horizontal base velocity, windowed (6)
	VRef       []float64 // reference velocity in horizontal frame (6)
	ARef       []float64 // reference acceleration in horizontal frame (6)

	ORb *mat.Dense // base orientation in world
	ORh *mat.Dense // yaw-only rotation of the horizontal frame
	HRb *mat.Dense // roll/pitch of the base seen from the horizontal frame
	OTh r3.Vector  // horizontal frame origin in world (z = 0)

	Yaw   float64
	QFilt []float64 // estimator-filtered configuration, rpy orientation
	VSecu []float64 // joint velocities used by the velocity limit check
}

// GaitPattern is the contact schedule over the planning horizon: one row
// per step, one column per limb, true = stance.
type GaitPattern struct {
	rows [][]bool
}

func NewGaitPattern(rows [][]bool) GaitPattern {
	p := GaitPattern{rows: make([][]bool, len(rows))}
	for i, r := range rows {
		p.rows[i] = append([]bool(nil), r...)
	}
	return p
}

func (p GaitPattern) Rows() int { return len(p.rows) }

func (p GaitPattern) Limbs() int {
	if len(p.rows) == 0 {
		return 0
	}
	return len(p.rows[0])
}

// Row returns a copy of row i.
func (p GaitPattern) Row(i int) []bool {
	if i < 0 || i >= len(p.rows) {
		return nil
	}
	return append([]bool(nil), p.rows[i]...)
}

func (p GaitPattern) InContact(row, limb int) bool {
	if row < 0 || row >= len(p.rows) || limb < 0 || limb >= len(p.rows[row]) {
		return false
	}
	return p.rows[row][limb]
}

// ContactWeights returns row i as 1 for stance and 0 for swing, the form
// force solvers take contact rows in.
func (p GaitPattern) ContactWeights(i int) []float64 {
	if i < 0 || i >= len(p.rows) {
		return nil
	}
	w := make([]float64, len(p.rows[i]))
	for f, c := range p.rows[i] {
		w[f] = BoolToFloat(c)
	}
	return w
}

// AllInContact reports whether every limb is in stance on row 0.
func (p GaitPattern) AllInContact() bool {
	if len(p.rows) == 0 {
		return false
	}
	for _, c := range p.rows[0] {
		if !c {
			return false
		}
	}
	return true
}

func (p GaitPattern) Clone() GaitPattern { return NewGaitPattern(p.rows) }

func (p GaitPattern) Equal(o GaitPattern) bool { return reflect.DeepEqual(p.rows, o.rows) }

// FootstepPlan holds the next touchdown of each limb in world frame and the
// planned foothold of each limb on every horizon row.
type FootstepPlan struct {
	Targets []r3.Vector
	Steps   [][]r3.Vector
}

func (f FootstepPlan) Clone() FootstepPlan {
	out := FootstepPlan{Targets: append([]r3.Vector(nil), f.Targets...)}
	if f.Steps != nil {
		out.Steps = make([][]r3.Vector, len(f.Steps))
		for i, s := range f.Steps {
			out.Steps[i] = append([]r3.Vector(nil), s...)
		}
	}
	return out
}

// ReferenceTrajectory columns are 12-vectors: position, rpy, linear
// velocity, angular velocity. Column 0 is the current state.
type ReferenceTrajectory struct {
	States [][]float64
}

// Configurations returns position+rpy of every horizon column.
func (r ReferenceTrajectory) Configurations() [][]float64 {
	out := make([][]float64, len(r.States))
	for i, s := range r.States {
		n := 6
		if len(s) < n {
			n = len(s)
		}
		out[i] = cloneFloats(s[:n])
	}
	return out
}

// At returns element row of column col, or 0 when out of range.
func (r ReferenceTrajectory) At(row, col int) float64 {
	if col < 0 || col >= len(r.States) || row < 0 || row >= len(r.States[col]) {
		return 0
	}
	return r.States[col][row]
}

func (r ReferenceTrajectory) Clone() ReferenceTrajectory {
	return ReferenceTrajectory{States: cloneMatrix(r.States)}
}

// MPCResult is the latest solved state-and-force trajectory. Row i of
// States and Forces is horizon step i and pairs with gait row i; Forces
// rows hold 3 components per foot in the horizontal frame.
//
// Footholds (footstep-optimising solvers only) lag the gait by one step:
// the touchdown chosen for a limb whose first stance gait row is r is read
// from Footholds[r+1]. Row 0 is never read.
type MPCResult struct {
	Tick      int
	States    [][]float64
	Forces    [][]float64
	Footholds [][]r3.Vector
}

// ContactForces returns a copy of the first horizon step's forces.
func (m MPCResult) ContactForces() []float64 {
	if len(m.Forces) == 0 {
		return nil
	}
	return cloneFloats(m.Forces[0])
}

func (m MPCResult) Clone() MPCResult {
	out := MPCResult{
		Tick:   m.Tick,
		States: cloneMatrix(m.States),
		Forces: cloneMatrix(m.Forces),
	}
	if m.Footholds != nil {
		out.Footholds = make([][]r3.Vector, len(m.Footholds))
		for i, f := range m.Footholds {
			out.Footholds[i] = append([]r3.Vector(nil), f...)
		}
	}
	return out
}

func (m MPCResult) Equal(o MPCResult) bool { return reflect.DeepEqual(m, o) }

// ActuatorCommand is what the motor drivers receive every fine tick.
type ActuatorCommand struct {
	P     []float64
	D     []float64
	FF    []float64 // feed-forward gain
	QDes  []float64
	VDes  []float64
	TauFF []float64
}

func NewActuatorCommand(n int) ActuatorCommand {
	return ActuatorCommand{
		P:     make([]float64, n),
		D:     make([]float64, n),
		FF:    make([]float64, n),
		QDes:  make([]float64, n),
		VDes:  make([]float64, n),
		TauFF: make([]float64, n),
	}
}

// SafeCommand is the damped, zero-gain command: joints go limp with light
// damping.
func SafeCommand(n int, damping float64) ActuatorCommand {
	cmd := NewActuatorCommand(n)
	for i := range cmd.D {
		cmd.D[i] = damping
	}
	return cmd
}

func (c ActuatorCommand) Joints() int { return len(c.P) }

func (c ActuatorCommand) Clone() ActuatorCommand {
	return ActuatorCommand{
		P:     cloneFloats(c.P),
		D:     cloneFloats(c.D),
		FF:    cloneFloats(c.FF),
		QDes:  cloneFloats(c.QDes),
		VDes:  cloneFloats(c.VDes),
		TauFF: cloneFloats(c.TauFF),
	}
}

// FaultCode is the safety check verdict.
type FaultCode int

const (
	FaultNone FaultCode = iota
	FaultJointLimit
	FaultVelocityLimit
	FaultTorqueLimit
)

func (f FaultCode) String() string {
	switch f {
	case FaultNone:
		return "NONE"
	case FaultJointLimit:
		return "JOINT_LIMIT"
	case FaultVelocityLimit:
		return "VELOCITY_LIMIT"
	case FaultTorqueLimit:
		return "TORQUE_LIMIT"
	}
	return fmt.Sprintf("FAULT(%d)", int(f))
}

// SecurityStatus is session scoped: once Faulted is set it stays set and
// Code, Tick and Value are never overwritten.
type SecurityStatus struct {
	Session string
	Code    FaultCode
	Faulted bool
	Tick    int
	Value   []float64
}

// SensorSample is one fine tick of raw sensor input.
type SensorSample struct {
	LinearAcceleration [3]float64
	AngularRate        [3]float64
	Attitude           [3]float64 // roll, pitch, yaw
	JointPositions     []float64
	JointVelocities    []float64

	// Motion-capture mode only.
	BasePose     *[6]float64 // x, y, z, roll, pitch, yaw
	BaseVelocity *[3]float64 // base frame linear velocity
}

// JoystickInput is the operator command for one tick.
type JoystickInput struct {
	VRef     [6]float64 // horizontal frame reference twist
	GaitCode int        // 0 = keep current gait
	Stop     bool
	L1       bool       // demonstration hold
	PRef     [6]float64 // demonstration pose target: x y h roll pitch yaw
}

func cloneFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	return append([]float64(nil), s...)
}

func cloneMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, r := range m {
		out[i] = cloneFloats(r)
	}
	return out
}
