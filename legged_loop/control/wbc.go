package control

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// SynthesisInputs is the per-tick view the command synthesizer reads.
type SynthesisInputs struct {
	State     *RobotState
	Filters   *FilterChain
	Reference ReferenceTrajectory
	MPC       MPCResult
	Pattern   GaitPattern
	Feet      FootTrajectoryGenerator
	Static    bool
	Joystick  JoystickInput
}

// CommandSynthesizer assembles the whole-body problem and turns its output
// into an actuator command. Joint entries of the configuration and velocity
// it sends are last tick's desired values, not measurements.
type CommandSynthesizer struct {
	solver   WBCSolver
	cfg      Config
	kp, kd   []float64
	extended bool

	qdes []float64
	vdes []float64
	nle  []float64
}

func NewCommandSynthesizer(cfg Config, solver WBCSolver) *CommandSynthesizer {
	kp, kd := cfg.JointGains()
	s := &CommandSynthesizer{
		solver:   solver,
		cfg:      cfg,
		kp:       kp,
		kd:       kd,
		extended: cfg.Mode == ModeExtended,
		qdes:     fitFloats(cfg.InitialJoints, cfg.NumJoints),
		vdes:     make([]float64, cfg.NumJoints),
		nle:      make([]float64, 3),
	}
	return s
}

// Compute runs one WBC solve and records its desired joint state for the
// next tick.
func (s *CommandSynthesizer) Compute(in SynthesisInputs) ActuatorCommand {
	wi := s.problem(in)
	out := s.solver.Compute(wi)

	n := s.cfg.NumJoints
	cmd := ActuatorCommand{
		P:     cloneFloats(s.kp),
		D:     cloneFloats(s.kd),
		FF:    make([]float64, n),
		QDes:  fitFloats(out.QDes, n),
		VDes:  fitFloats(out.VDes, n),
		TauFF: fitFloats(out.TauFF, n),
	}
	for i := range cmd.FF {
		cmd.FF[i] = s.cfg.KffMain
	}

	s.qdes = cloneFloats(cmd.QDes)
	s.vdes = cloneFloats(cmd.VDes)
	s.nle = fitFloats(out.NLE, 3)
	return cmd
}

// problem builds the WBC input without touching any stored state.
func (s *CommandSynthesizer) problem(in SynthesisInputs) WBCInput {
	n := s.cfg.NumJoints
	st := in.State
	hRb := st.HRb
	hRef := s.cfg.HRef
	var goals [12]float64

	demo := s.cfg.Demonstration && in.Static
	if demo {
		hRb = Identity3()
		if in.Joystick.L1 {
			p := in.Joystick.PRef
			goals[3], goals[4] = p[3], p[4]
			hRef = p[2]
			hRb = YawRotation(p[5])
		}
	}

	forces := in.MPC.ContactForces()
	if demo {
		forces = make([]float64, 3*s.cfg.NumFeet)
		for i := 0; i < s.cfg.NumFeet; i++ {
			forces[3*i+2] = gravity * s.cfg.Mass / float64(s.cfg.NumFeet)
		}
	}

	pose := in.Filters.Pose()
	q := make([]float64, 6+n)
	if s.extended {
		ratio := s.cfg.DtWBC / s.cfg.DtMPC
		q[3] = ratio*(in.Reference.At(3, 1)-pose[3]) + pose[3]
		q[4] = ratio*(in.Reference.At(4, 1)-pose[4]) + pose[4]
	} else {
		q[3], q[4] = pose[3], pose[4]
	}
	copy(q[6:], s.qdes)

	dq := make([]float64, 6+n)
	copy(dq[:6], st.Base.V)
	copy(dq[6:], s.vdes)

	var r mat.Matrix
	var origin r3.Vector
	if s.extended {
		q3 := in.Filters.Pose3D()
		r = RPYToMatrix(q3[3], q3[4], q3[5]).T()
		origin = r3.Vector{X: q3[0], Y: q3[1], Z: hRef}
	} else {
		r = BaseFromWorld(hRb, st.ORh)
		origin = st.OTh.Add(r3.Vector{Z: hRef})
	}

	copy(goals[6:], in.Filters.RefVelocity())

	return WBCInput{
		Q:       q,
		DQ:      dq,
		Forces:  forces,
		Contact: in.Pattern.Row(0),
		FeetPos: ToFrame(r, origin, in.Feet.Position()),
		FeetVel: ToFrame(r, r3.Vector{}, in.Feet.Velocity()),
		FeetAcc: ToFrame(r, r3.Vector{}, in.Feet.Acceleration()),
		Goals:   goals,
	}
}

// Desired returns copies of the stored desired joint positions and
// velocities.
func (s *CommandSynthesizer) Desired() (qdes, vdes []float64) {
	return cloneFloats(s.qdes), cloneFloats(s.vdes)
}

// NLE is the last non-linear effects estimate on the base.
func (s *CommandSynthesizer) NLE() []float64 { return cloneFloats(s.nle) }
