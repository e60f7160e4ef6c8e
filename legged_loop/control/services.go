package control

import (
	"errors"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrInfeasible is what MPC solvers return (possibly wrapped) when the
// optimisation has no solution this tick.
var ErrInfeasible = errors.New("mpc problem infeasible")

// EstimatorInput is everything the fusion filter consumes on one tick.
type EstimatorInput struct {
	Sample        SensorSample
	Gait          GaitPattern
	FeetPositions []r3.Vector // from the foot trajectory generator, world frame
	VRef          []float64   // operator reference twist (6)
}

// Estimate is the fused state exposed by the estimator after an update.
type Estimate struct {
	Q, V       []float64 // world frame, rpy orientation (6+N)
	HQ, HV     []float64 // horizontal frame (6+N)
	BV         []float64 // base frame velocity (6+N)
	HVWindowed []float64
	VRef, ARef []float64
	QFilt      []float64
	VSecu      []float64
	Yaw        float64
	OTh        r3.Vector
}

// StateEstimator is the external sensor-fusion filter.
type StateEstimator interface {
	Update(in EstimatorInput)
	Estimate() Estimate
	SecurityCheck(tauFF []float64) FaultCode
}

// Gait is the external gait-phase state machine.
type Gait interface {
	Advance(tick, ratio, joystickCode int)
	CurrentPattern() GaitPattern
	IsNewPhase() bool
	IsStatic() bool
}

// SurfacePlan is the asynchronous surface planner's output.
type SurfacePlan struct {
	Iteration int
	Success   bool
	Surfaces  [][]r3.Vector // per limb: polygon of the selected contact surface
	FeetPos   [][]r3.Vector // per horizon phase, per limb
}

// FootstepRequest carries footstep planner inputs. Surfaces is nil in flat
// mode.
type FootstepRequest struct {
	Refresh          bool
	TicksUntilCoarse int
	Q                []float64
	HVWindowed       []float64
	VRef             []float64
	Surfaces         *SurfacePlan
}

type FootstepPlanner interface {
	Plan(req FootstepRequest) FootstepPlan
}

// StatePlanner produces the base reference trajectory.
type StatePlanner interface {
	ComputeReference(q, v, vref []float64, newPhase bool) ReferenceTrajectory
}

// SurfaceRequest is what the surface planner worker receives.
type SurfaceRequest struct {
	Configurations [][]float64
	Gait           GaitPattern
	Targets        []r3.Vector
	VRef           []float64
}

// SurfacePlanner runs off the control goroutine. Run must not block; Poll
// returns the newest finished plan, if any.
type SurfacePlanner interface {
	Run(req SurfaceRequest)
	Poll() (SurfacePlan, bool)
}

// FootTrajectoryGenerator interpolates swing feet toward their targets.
// Vectors are world frame.
type FootTrajectoryGenerator interface {
	Update(tick int, targets []r3.Vector, surfaces *SurfacePlan, current []r3.Vector)
	Position() []r3.Vector
	Velocity() []r3.Vector
	Acceleration() []r3.Vector
	Jerk() []r3.Vector
	// TimeToLiftoff is swing duration minus elapsed time, per limb.
	TimeToLiftoff() []float64
}

// Kinematics computes feet positions from a configuration (forward
// kinematics); used for foot feedback in extended mode.
type Kinematics interface {
	FeetPositions(q, v []float64) []r3.Vector
}

// MPCRequest is the coarse-rate optimisation input. The Target* and Foot*
// fields are only filled for footstep-optimising solvers.
type MPCRequest struct {
	Tick      int
	Reference ReferenceTrajectory
	Footsteps FootstepPlan
	Gait      GaitPattern
	TargetsH  []r3.Vector // target footsteps in horizontal frame
	ORh       *mat.Dense
	OTh       r3.Vector
	FootPos   []r3.Vector
	FootVel   []r3.Vector
	FootAcc   []r3.Vector
	FootJerk  []r3.Vector
	LiftoffIn []float64
}

type MPCSolver interface {
	Solve(req MPCRequest) (MPCResult, error)
}

// WBCInput is one whole-body QP problem. Feet vectors are in the base frame.
type WBCInput struct {
	Q, DQ   []float64 // 6+N; joints are last tick's desired values
	Forces  []float64 // 3 per foot
	Contact []bool
	FeetPos []r3.Vector
	FeetVel []r3.Vector
	FeetAcc []r3.Vector
	Goals   [12]float64
}

type WBCOutput struct {
	QDes  []float64
	VDes  []float64
	TauFF []float64
	NLE   []float64 // non-linear effects on the base, logging only
}

type WBCSolver interface {
	Compute(in WBCInput) WBCOutput
}

// Services bundles the black boxes the orchestrator drives. SurfacePlanner
// and Kinematics are required in extended mode only.
type Services struct {
	Estimator      StateEstimator
	Gait           Gait
	Footsteps      FootstepPlanner
	States         StatePlanner
	Surfaces       SurfacePlanner
	FootTrajectory FootTrajectoryGenerator
	Kinematics     Kinematics
	MPC            MPCSolver
	WBC            WBCSolver
}
