package control

import (
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"

	"legged-ctrl-core/utils"
)

func testLogger() *utils.Logger { return utils.NewLogger(io.Discard, utils.TRACE) }

// testRobotState is a standing robot at the reference height with the given
// yaw and every vector sized for cfg.
func testRobotState(cfg Config, yaw float64) RobotState {
	n := 6 + cfg.NumJoints
	q := make([]float64, n)
	q[2] = cfg.HRef
	q[5] = yaw
	copy(q[6:], cfg.InitialJoints)
	return RobotState{
		World:      GeneralizedState{Q: q, V: make([]float64, n)},
		Horizontal: GeneralizedState{Q: cloneFloats(q), V: make([]float64, n)},
		Base:       GeneralizedState{Q: make([]float64, n), V: make([]float64, n)},
		HVWindowed: make([]float64, 6),
		VRef:       make([]float64, 6),
		ARef:       make([]float64, 6),
		ORb:        RPYToMatrix(0, 0, yaw),
		ORh:        YawRotation(yaw),
		HRb:        Identity3(),
		Yaw:        yaw,
		QFilt:      cloneFloats(q),
		VSecu:      make([]float64, cfg.NumJoints),
	}
}

// callLog records the order in which the fakes are driven.
type callLog struct {
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	if l != nil {
		l.calls = append(l.calls, fmt.Sprintf(format, args...))
	}
}

type fakeEstimator struct {
	log     *callLog
	joints  int
	hRef    float64
	updates int
	last    EstimatorInput

	faultTick int // tick at which SecurityCheck starts failing, -1 = never
	faultCode FaultCode
	checks    []int
}

func newFakeEstimator(cfg Config, log *callLog) *fakeEstimator {
	return &fakeEstimator{log: log, joints: cfg.NumJoints, hRef: cfg.HRef, faultTick: -1}
}

func (e *fakeEstimator) tick() int { return e.updates - 1 }

func (e *fakeEstimator) Update(in EstimatorInput) {
	e.updates++
	e.last = in
	e.log.add("estimate %d", e.tick())
}

func (e *fakeEstimator) Estimate() Estimate {
	n := 6 + e.joints
	q := make([]float64, n)
	q[2] = e.hRef
	copy(q[6:], e.last.Sample.JointPositions)
	v := make([]float64, n)
	copy(v[6:], e.last.Sample.JointVelocities)
	return Estimate{
		Q: q, V: v, HQ: cloneFloats(q), HV: cloneFloats(v), BV: cloneFloats(v),
		VRef: cloneFloats(e.last.VRef), QFilt: cloneFloats(q),
		VSecu: cloneFloats(e.last.Sample.JointVelocities),
	}
}

func (e *fakeEstimator) SecurityCheck(tauFF []float64) FaultCode {
	e.checks = append(e.checks, e.tick())
	if e.faultTick >= 0 && e.tick() >= e.faultTick {
		return e.faultCode
	}
	return FaultNone
}

type fakeGait struct {
	log        *callLog
	phaseEvery int // advances per contact phase
	advances   int
	newPhase   bool
	static     bool
	codes      []int
}

func (g *fakeGait) Advance(tick, ratio, code int) {
	g.newPhase = g.phaseEvery > 0 && g.advances%g.phaseEvery == 0
	g.advances++
	g.codes = append(g.codes, code)
	g.log.add("gait %d", tick)
}

func (g *fakeGait) CurrentPattern() GaitPattern {
	swingFront := (g.advances/max(g.phaseEvery, 1))%2 == 0
	return NewGaitPattern([][]bool{
		{!swingFront, swingFront, swingFront, !swingFront},
		{swingFront, !swingFront, !swingFront, swingFront},
		{true, true, true, true},
	})
}

func (g *fakeGait) IsNewPhase() bool { return g.newPhase }
func (g *fakeGait) IsStatic() bool   { return g.static }

type fakeFootsteps struct {
	log  *callLog
	reqs []FootstepRequest
}

func (f *fakeFootsteps) Plan(req FootstepRequest) FootstepPlan {
	f.reqs = append(f.reqs, req)
	f.log.add("footsteps")
	return FootstepPlan{Targets: []r3.Vector{{X: 0.2, Y: 0.15}, {X: 0.2, Y: -0.15}, {X: -0.2, Y: 0.15}, {X: -0.2, Y: -0.15}}}
}

type fakeStatePlanner struct {
	log       *callLog
	newPhases []bool
	nextRoll  float64
}

func (s *fakeStatePlanner) ComputeReference(q, v, vref []float64, newPhase bool) ReferenceTrajectory {
	s.newPhases = append(s.newPhases, newPhase)
	s.log.add("states")
	cur := make([]float64, 12)
	copy(cur, q)
	next := cloneFloats(cur)
	next[3] = s.nextRoll
	return ReferenceTrajectory{States: [][]float64{cur, next}}
}

type fakeSurfaces struct {
	log   *callLog
	runs  int
	polls int
}

func (s *fakeSurfaces) Run(req SurfaceRequest) {
	s.runs++
	s.log.add("surfaces.run")
}

func (s *fakeSurfaces) Poll() (SurfacePlan, bool) {
	s.polls++
	s.log.add("surfaces.poll")
	return SurfacePlan{Iteration: s.runs, Success: true}, s.runs > 0
}

type fakeFeet struct {
	log      *callLog
	feet     int
	targets  []r3.Vector
	current  []r3.Vector
	surfaces *SurfacePlan
	updates  int
}

func (f *fakeFeet) Update(tick int, targets []r3.Vector, surfaces *SurfacePlan, current []r3.Vector) {
	f.updates++
	f.targets = append([]r3.Vector(nil), targets...)
	f.current = current
	f.surfaces = surfaces
	f.log.add("feet %d", tick)
}

func (f *fakeFeet) Position() []r3.Vector {
	if f.targets != nil {
		return append([]r3.Vector(nil), f.targets...)
	}
	return make([]r3.Vector, f.feet)
}
func (f *fakeFeet) Velocity() []r3.Vector     { return make([]r3.Vector, f.feet) }
func (f *fakeFeet) Acceleration() []r3.Vector { return make([]r3.Vector, f.feet) }
func (f *fakeFeet) Jerk() []r3.Vector         { return make([]r3.Vector, f.feet) }
func (f *fakeFeet) TimeToLiftoff() []float64  { return make([]float64, f.feet) }

type fakeKinematics struct {
	calls int
}

func (k *fakeKinematics) FeetPositions(q, v []float64) []r3.Vector {
	k.calls++
	return []r3.Vector{{X: 0.19, Y: 0.15}, {X: 0.19, Y: -0.15}, {X: -0.19, Y: 0.15}, {X: -0.19, Y: -0.15}}
}

type fakeMPC struct {
	log    *callLog
	feet   int
	failAt map[int]bool
	ticks  []int
	reqs   []MPCRequest

	footholds [][]r3.Vector // returned with every result when set
}

func (m *fakeMPC) Solve(req MPCRequest) (MPCResult, error) {
	m.ticks = append(m.ticks, req.Tick)
	m.reqs = append(m.reqs, req)
	m.log.add("mpc %d", req.Tick)
	if m.failAt[req.Tick] {
		return MPCResult{}, fmt.Errorf("solver gave up at tick %d: %w", req.Tick, ErrInfeasible)
	}
	forces := make([]float64, 3*m.feet)
	for i := 0; i < m.feet; i++ {
		forces[3*i+2] = 5 + float64(req.Tick)/1000
	}
	return MPCResult{
		States:    [][]float64{{float64(req.Tick), 0, 0.24}},
		Forces:    [][]float64{forces, cloneFloats(forces)},
		Footholds: m.footholds,
	}, nil
}

type fakeWBC struct {
	log    *callLog
	inputs []WBCInput
	tau    float64
}

// Compute nudges the previous desired joints so self-feedback is visible.
func (w *fakeWBC) Compute(in WBCInput) WBCOutput {
	w.inputs = append(w.inputs, in)
	w.log.add("wbc")
	joints := len(in.Q) - 6
	out := WBCOutput{
		QDes:  make([]float64, joints),
		VDes:  make([]float64, joints),
		TauFF: make([]float64, joints),
		NLE:   []float64{0, 0, 24.5},
	}
	for i := 0; i < joints; i++ {
		out.QDes[i] = in.Q[6+i] + 0.001
		out.VDes[i] = in.DQ[6+i] + 0.01
		out.TauFF[i] = w.tau
	}
	return out
}

type fakeRig struct {
	cfg       Config
	log       *callLog
	est       *fakeEstimator
	gait      *fakeGait
	footsteps *fakeFootsteps
	states    *fakeStatePlanner
	surfaces  *fakeSurfaces
	feet      *fakeFeet
	kin       *fakeKinematics
	mpc       *fakeMPC
	wbc       *fakeWBC
}

func newFakeRig(cfg Config) *fakeRig {
	log := &callLog{}
	return &fakeRig{
		cfg:       cfg,
		log:       log,
		est:       newFakeEstimator(cfg, log),
		gait:      &fakeGait{log: log, phaseEvery: 8},
		footsteps: &fakeFootsteps{log: log},
		states:    &fakeStatePlanner{log: log},
		surfaces:  &fakeSurfaces{log: log},
		feet:      &fakeFeet{log: log, feet: cfg.NumFeet},
		kin:       &fakeKinematics{},
		mpc:       &fakeMPC{log: log, feet: cfg.NumFeet, failAt: map[int]bool{}},
		wbc:       &fakeWBC{log: log, tau: 0.5},
	}
}

func (r *fakeRig) services() Services {
	return Services{
		Estimator:      r.est,
		Gait:           r.gait,
		Footsteps:      r.footsteps,
		States:         r.states,
		Surfaces:       r.surfaces,
		FootTrajectory: r.feet,
		Kinematics:     r.kin,
		MPC:            r.mpc,
		WBC:            r.wbc,
	}
}

func (r *fakeRig) sample() SensorSample {
	return SensorSample{
		JointPositions:  cloneFloats(r.cfg.InitialJoints),
		JointVelocities: make([]float64, r.cfg.NumJoints),
	}
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }
