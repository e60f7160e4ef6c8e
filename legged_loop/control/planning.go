package control

import (
	"fmt"

	"github.com/golang/geo/r3"

	"legged-ctrl-core/utils"
)

// planningPipeline is the mode-specific part of coarse-rate planning,
// chosen once at construction.
type planningPipeline interface {
	name() string
	plan(k int, newPhase bool, st *RobotState, f *FilterChain) (FootstepPlan, ReferenceTrajectory)
	surfaces() *SurfacePlan
}

// PlanningCoordinator is the caller protocol around the external gait and
// planners. On a coarse tick the order is fixed: gait advance, filters,
// footsteps, reference trajectory, surface planner.
type PlanningCoordinator struct {
	gait     Gait
	sched    *Scheduler
	filters  *FilterChain
	pipeline planningPipeline
	log      *utils.Logger

	pattern   GaitPattern
	plan      FootstepPlan
	reference ReferenceTrajectory
	newPhase  bool
}

func NewPlanningCoordinator(cfg Config, svc Services, sched *Scheduler, filters *FilterChain, log *utils.Logger) (*PlanningCoordinator, error) {
	if svc.Gait == nil || svc.Footsteps == nil || svc.States == nil {
		return nil, fmt.Errorf("%w: gait, footstep planner and state planner are required", ErrInvalidConfig)
	}
	c := &PlanningCoordinator{
		gait:    svc.Gait,
		sched:   sched,
		filters: filters,
		log:     log,
		plan:    FootstepPlan{Targets: make([]r3.Vector, cfg.NumFeet)},
	}
	switch cfg.Mode {
	case ModeExtended:
		if svc.Surfaces == nil {
			return nil, fmt.Errorf("%w: extended mode requires a surface planner", ErrInvalidConfig)
		}
		c.pipeline = &extendedPipeline{
			sched:     sched,
			footsteps: svc.Footsteps,
			states:    svc.States,
			planner:   svc.Surfaces,
			gait:      svc.Gait,
			first:     true,
			log:       log,
		}
	default:
		c.pipeline = &flatPipeline{sched: sched, footsteps: svc.Footsteps, states: svc.States}
	}
	c.pattern = svc.Gait.CurrentPattern()
	return c, nil
}

// Step runs the coarse-rate protocol when the decision says so and reports
// whether this tick opened a new contact phase. On fine ticks the held
// pattern, plan and trajectory are left untouched.
func (c *PlanningCoordinator) Step(k int, d Decision, st *RobotState, joystickCode int) bool {
	c.newPhase = false
	if !d.RunCoarseGait {
		return false
	}

	c.gait.Advance(k, c.sched.Ratio(), joystickCode)
	c.pattern = c.gait.CurrentPattern()
	c.filters.Update(st)
	c.newPhase = c.sched.IsNewContactPhase(k, c.gait.IsNewPhase())

	if d.RunPlanning {
		c.plan, c.reference = c.pipeline.plan(k, c.newPhase, st, c.filters)
	}
	if c.newPhase {
		c.log.Debug("tick %d: new contact phase, row0=%v", k, c.pattern.Row(0))
	}
	return c.newPhase
}

func (c *PlanningCoordinator) Pattern() GaitPattern           { return c.pattern }
func (c *PlanningCoordinator) Plan() FootstepPlan             { return c.plan }
func (c *PlanningCoordinator) Reference() ReferenceTrajectory { return c.reference }
func (c *PlanningCoordinator) NewPhase() bool                 { return c.newPhase }
func (c *PlanningCoordinator) Surfaces() *SurfacePlan         { return c.pipeline.surfaces() }
func (c *PlanningCoordinator) IsStatic() bool                 { return c.gait.IsStatic() }
func (c *PlanningCoordinator) PipelineName() string           { return c.pipeline.name() }

// Targets returns the next touchdown per limb, with footholds chosen by a
// footstep-optimising MPC substituted for swinging limbs once enabled.
func (c *PlanningCoordinator) Targets(res MPCResult, override bool) []r3.Vector {
	out := append([]r3.Vector(nil), c.plan.Targets...)
	if !override || len(res.Footholds) == 0 {
		return out
	}
	for foot := range out {
		if c.pattern.InContact(0, foot) {
			continue
		}
		row := 0
		for row < c.pattern.Rows() && !c.pattern.InContact(row, foot) {
			row++
		}
		if row == c.pattern.Rows() {
			continue
		}
		step := row + 1
		if step >= len(res.Footholds) || foot >= len(res.Footholds[step]) {
			continue
		}
		out[foot].X = res.Footholds[step][foot].X
		out[foot].Y = res.Footholds[step][foot].Y
	}
	return out
}

type flatPipeline struct {
	sched     *Scheduler
	footsteps FootstepPlanner
	states    StatePlanner
}

func (p *flatPipeline) name() string { return string(ModeFlat) }

func (p *flatPipeline) surfaces() *SurfacePlan { return nil }

func (p *flatPipeline) plan(k int, newPhase bool, st *RobotState, f *FilterChain) (FootstepPlan, ReferenceTrajectory) {
	plan := p.footsteps.Plan(FootstepRequest{
		Refresh:          p.sched.Refresh(k),
		TicksUntilCoarse: p.sched.TicksUntilCoarse(k),
		Q:                cloneFloats(st.World.Q),
		HVWindowed:       cloneFloats(st.HVWindowed),
		VRef:             cloneFloats(st.VRef),
	})
	ref := p.states.ComputeReference(f.Pose()[:6], f.Velocity(), f.RefVelocity(), newPhase)
	return plan, ref
}

// extendedPipeline adds the asynchronous surface planner. The first new
// phase only launches the planner; later ones consume its latest result
// before planning footsteps.
type extendedPipeline struct {
	sched     *Scheduler
	footsteps FootstepPlanner
	states    StatePlanner
	planner   SurfacePlanner
	gait      Gait
	log       *utils.Logger

	first  bool
	latest *SurfacePlan
}

func (p *extendedPipeline) name() string { return string(ModeExtended) }

func (p *extendedPipeline) surfaces() *SurfacePlan { return p.latest }

func (p *extendedPipeline) plan(k int, newPhase bool, st *RobotState, f *FilterChain) (FootstepPlan, ReferenceTrajectory) {
	if newPhase {
		if p.first {
			p.first = false
		} else if sp, ok := p.planner.Poll(); ok {
			p.latest = &sp
		} else {
			p.log.Debug("tick %d: surface planner result not ready, keeping iteration %d", k, p.iteration())
		}
	}

	plan := p.footsteps.Plan(FootstepRequest{
		Refresh:          p.sched.Refresh(k),
		TicksUntilCoarse: p.sched.TicksUntilCoarse(k),
		Q:                f.Pose3D(),
		HVWindowed:       cloneFloats(st.HVWindowed),
		VRef:             cloneFloats(st.VRef),
		Surfaces:         p.latest,
	})
	ref := p.states.ComputeReference(f.Pose3D()[:6], f.Velocity(), f.RefVelocity(), newPhase)

	if newPhase {
		p.planner.Run(SurfaceRequest{
			Configurations: ref.Configurations(),
			Gait:           p.gait.CurrentPattern(),
			Targets:        append([]r3.Vector(nil), plan.Targets...),
			VRef:           f.RefVelocity(),
		})
	}
	return plan, ref
}

func (p *extendedPipeline) iteration() int {
	if p.latest == nil {
		return -1
	}
	return p.latest.Iteration
}
