package control

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"legged-ctrl-core/utils"
)

// Orchestrator runs one control cycle per fine tick. It owns the tick
// counter, the fault latch and every component's per-session state; none
// of it is global.
type Orchestrator struct {
	cfg     Config
	log     *utils.Logger
	session string

	feet       FootTrajectoryGenerator
	kinematics Kinematics

	sched      *Scheduler
	estimation *EstimationAdapter
	filters    *FilterChain
	planning   *PlanningCoordinator
	gate       *MPCGate
	wbc        *CommandSynthesizer
	security   *SecurityMonitor
	timing     *TimingMonitor

	k       int
	stopped bool
	lastCmd ActuatorCommand
	targets []r3.Vector // last touchdown targets handed to the feet, override included
}

// NewOrchestrator validates cfg and wires the components. Any error here is
// fatal for the session.
func NewOrchestrator(cfg Config, svc Services, log *utils.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ratio, err := cfg.Ratio()
	if err != nil {
		return nil, err
	}
	if svc.Estimator == nil || svc.FootTrajectory == nil || svc.MPC == nil || svc.WBC == nil {
		return nil, fmt.Errorf("%w: estimator, foot trajectory generator, mpc and wbc are required", ErrInvalidConfig)
	}
	extended := cfg.Mode == ModeExtended
	if extended && svc.Kinematics == nil {
		return nil, fmt.Errorf("%w: extended mode requires kinematics for foot feedback", ErrInvalidConfig)
	}

	o := &Orchestrator{
		cfg:        cfg,
		log:        log,
		session:    uuid.NewString(),
		feet:       svc.FootTrajectory,
		kinematics: svc.Kinematics,
		lastCmd:    SafeCommand(cfg.NumJoints, cfg.SafeDamping),
	}
	if o.sched, err = NewScheduler(ratio); err != nil {
		return nil, err
	}
	if o.filters, err = NewFilterChain(cfg, extended); err != nil {
		return nil, err
	}
	o.estimation = NewEstimationAdapter(svc.Estimator, cfg.NumJoints)
	if o.planning, err = NewPlanningCoordinator(cfg, svc, o.sched, o.filters, log.Named("planning")); err != nil {
		return nil, err
	}
	o.gate = NewMPCGate(svc.MPC, log.Named("mpc"))
	o.wbc = NewCommandSynthesizer(cfg, svc.WBC)
	o.security = NewSecurityMonitor(o.session, o.estimation, cfg.NumJoints, cfg.SafeDamping, log.Named("security"))
	o.timing = NewTimingMonitor(time.Duration(cfg.DtWBC*float64(time.Second)), log.Named("timing"))

	log.Info("controller ready: session=%s mode=%s ratio=%d joints=%d feet=%d footstep_mpc=%v demonstration=%v",
		o.session, o.planning.PipelineName(), ratio, cfg.NumJoints, cfg.NumFeet, cfg.FootstepMPC, cfg.Demonstration)
	return o, nil
}

// Prime runs the first tick on a motionless sample at the initial joint
// configuration so gait, plan and MPC result are populated before real
// sensor data arrives.
func (o *Orchestrator) Prime() ActuatorCommand {
	pose := [6]float64{2: o.cfg.HRef}
	sample := SensorSample{
		JointPositions:  cloneFloats(o.cfg.InitialJoints),
		JointVelocities: make([]float64, o.cfg.NumJoints),
		BasePose:        &pose,
		BaseVelocity:    &[3]float64{},
	}
	return o.Step(sample, JoystickInput{})
}

// Step runs one fine tick and returns the command for the actuators. It
// never fails: solver failures hold previous results and safety faults
// switch the output to the safe command.
func (o *Orchestrator) Step(sample SensorSample, js JoystickInput) ActuatorCommand {
	k := o.k
	o.timing.Begin()

	st := o.estimation.Update(k, sample, o.planning.Pattern(), o.feet.Position(), js.VRef[:])
	o.timing.EndEstimation()

	d := o.sched.Decide(k)
	o.planning.Step(k, d, &st, js.GaitCode)
	o.timing.EndPlanning()

	o.gate.Run(d.RunMPC, MPCInputs{
		Tick:        k,
		Reference:   o.planning.Reference(),
		Footsteps:   o.planning.Plan(),
		Gait:        o.planning.Pattern(),
		FootstepMPC: o.cfg.FootstepMPC,
		Targets:     o.mpcTargets(),
		State:       &st,
		Feet:        o.feet,
	})
	res := o.gate.Latest()
	o.timing.EndMPC()

	targets := o.planning.Targets(res, o.cfg.FootstepMPC && k > o.cfg.FootstepOverrideAfter)
	o.targets = targets
	if o.cfg.Mode == ModeExtended {
		o.feet.Update(k, targets, o.planning.Surfaces(), o.footFeedback())
	} else {
		o.feet.Update(k, targets, nil, nil)
	}

	stopped := js.Stop
	if stopped != o.stopped {
		if stopped {
			o.log.Warn("tick %d: operator stop engaged", k)
		} else {
			o.log.Info("tick %d: operator stop released", k)
		}
		o.stopped = stopped
	}
	cmd := SafeCommand(o.cfg.NumJoints, o.cfg.SafeDamping)
	if !o.security.Faulted() && !stopped {
		cmd = o.wbc.Compute(SynthesisInputs{
			State:     &st,
			Filters:   o.filters,
			Reference: o.planning.Reference(),
			MPC:       res,
			Pattern:   o.planning.Pattern(),
			Feet:      o.feet,
			Static:    o.planning.IsStatic(),
			Joystick:  js,
		})
	}
	o.security.Check(k, st, cmd.TauFF, stopped)
	cmd = o.security.Apply(cmd, stopped)
	o.timing.EndWBC()

	o.timing.End(k)
	if o.cfg.DiagnosticsEvery > 0 && k%o.cfg.DiagnosticsEvery == 0 && o.log.Enabled(utils.DEBUG) {
		diag := o.Diagnostics()
		o.log.Debug("tick %d: overruns=%d worst=%v mpc_solves=%d mpc_failures=%d faulted=%v nle=%v",
			k, diag.Overruns, diag.WorstTick, diag.MPC.Solves, diag.MPC.Failures, diag.Security.Faulted, o.wbc.NLE())
	}

	o.lastCmd = cmd
	o.k++
	return cmd.Clone()
}

// mpcTargets is the previous tick's touchdown targets, so a footstep
// optimising solver sees its own earlier footholds. Before the first tick
// the current plan stands in.
func (o *Orchestrator) mpcTargets() []r3.Vector {
	if o.targets == nil {
		return o.planning.Plan().Targets
	}
	return append([]r3.Vector(nil), o.targets...)
}

// footFeedback is the measured feet position from forward kinematics on
// the filtered 3D configuration.
func (o *Orchestrator) footFeedback() []r3.Vector {
	return o.kinematics.FeetPositions(o.filters.Pose3D(), o.filters.Velocity3D())
}

// Diagnostics is a snapshot for logging and the operator endpoint.
type Diagnostics struct {
	Session   string
	Tick      int
	Pipeline  string
	Overruns  int
	LastTick  TickTiming
	WorstTick time.Duration
	MPC       MPCDiagnostics
	Security  SecurityStatus
}

func (o *Orchestrator) Diagnostics() Diagnostics {
	return Diagnostics{
		Session:   o.session,
		Tick:      o.k,
		Pipeline:  o.planning.PipelineName(),
		Overruns:  o.timing.Overruns(),
		LastTick:  o.timing.Last(),
		WorstTick: o.timing.Worst(),
		MPC:       o.gate.Diagnostics(),
		Security:  o.security.Status(),
	}
}

func (o *Orchestrator) Session() string        { return o.session }
func (o *Orchestrator) Tick() int              { return o.k }
func (o *Orchestrator) Status() SecurityStatus { return o.security.Status() }
func (o *Orchestrator) State() RobotState      { return o.estimation.State() }
func (o *Orchestrator) LastMPC() MPCResult     { return o.gate.Latest() }
func (o *Orchestrator) LastCommand() ActuatorCommand {
	return o.lastCmd.Clone()
}

// SafeCommand is the command to send when the loop is shutting down.
func (o *Orchestrator) SafeCommand() ActuatorCommand {
	return SafeCommand(o.cfg.NumJoints, o.cfg.SafeDamping)
}
