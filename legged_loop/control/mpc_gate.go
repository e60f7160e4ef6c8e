package control

import (
	"errors"
	"sync"

	"github.com/golang/geo/r3"

	"legged-ctrl-core/utils"
)

// MPCGate invokes the solver on coarse ticks and keeps the last good
// result. A failed solve is logged and counted; the stored result is left
// exactly as it was.
type MPCGate struct {
	solver MPCSolver
	log    *utils.Logger

	mu       sync.RWMutex
	latest   MPCResult
	solves   int
	failures int
	lastErr  error
	lastFail int
}

func NewMPCGate(solver MPCSolver, log *utils.Logger) *MPCGate {
	return &MPCGate{solver: solver, log: log, lastFail: -1}
}

// MPCInputs is what the orchestrator hands the gate on a coarse tick.
type MPCInputs struct {
	Tick      int
	Reference ReferenceTrajectory
	Footsteps FootstepPlan
	Gait      GaitPattern

	// Footstep-optimising solvers only.
	FootstepMPC bool
	Targets     []r3.Vector // world frame, previous tick's touchdown targets
	State       *RobotState
	Feet        FootTrajectoryGenerator
}

// Run solves when run is true and reports whether a new result was stored.
func (g *MPCGate) Run(run bool, in MPCInputs) bool {
	if !run {
		return false
	}
	req := MPCRequest{
		Tick:      in.Tick,
		Reference: in.Reference.Clone(),
		Footsteps: in.Footsteps.Clone(),
		Gait:      in.Gait.Clone(),
	}
	if in.FootstepMPC && in.State != nil {
		req.ORh = mat3Copy(in.State.ORh)
		req.OTh = in.State.OTh
		req.TargetsH = make([]r3.Vector, len(in.Targets))
		for i, p := range in.Targets {
			req.TargetsH[i] = WorldToHorizontal(in.State.ORh, in.State.OTh, p)
		}
		if in.Feet != nil {
			req.FootPos = in.Feet.Position()
			req.FootVel = in.Feet.Velocity()
			req.FootAcc = in.Feet.Acceleration()
			req.FootJerk = in.Feet.Jerk()
			req.LiftoffIn = in.Feet.TimeToLiftoff()
		}
	}

	res, err := g.solver.Solve(req)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.solves++
	if err != nil {
		g.failures++
		g.lastErr = err
		g.lastFail = in.Tick
		if errors.Is(err, ErrInfeasible) {
			g.log.Warn("tick %d: mpc infeasible, holding result from tick %d", in.Tick, g.latest.Tick)
		} else {
			g.log.Warn("tick %d: mpc solve failed, holding result from tick %d: %v", in.Tick, g.latest.Tick, err)
		}
		return false
	}
	res.Tick = in.Tick
	g.latest = res.Clone()
	return true
}

// Latest returns a deep copy of the last successful result.
func (g *MPCGate) Latest() MPCResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.latest.Clone()
}

// MPCDiagnostics contains gate counters for monitoring.
type MPCDiagnostics struct {
	Solves      int
	Failures    int
	LastFailure int // tick, -1 if none
	LastError   string
	ResultTick  int
}

func (g *MPCGate) Diagnostics() MPCDiagnostics {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d := MPCDiagnostics{
		Solves:      g.solves,
		Failures:    g.failures,
		LastFailure: g.lastFail,
		ResultTick:  g.latest.Tick,
	}
	if g.lastErr != nil {
		d.LastError = g.lastErr.Error()
	}
	return d
}
