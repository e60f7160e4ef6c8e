package nominal

import (
	"context"

	"legged-ctrl-core/legged_loop/control"
)

const horizonRows = 16

// Bundle is the nominal service set plus the handles the caller needs to
// shut it down.
type Bundle struct {
	Services control.Services
	Gait     *Gait
	Surfaces *SurfacePlanner
}

// NewBundle wires every nominal service for cfg. The surface planner worker
// is started only in extended mode.
func NewBundle(ctx context.Context, cfg control.Config) *Bundle {
	gait := NewGait(horizonRows, cfg.NumFeet)
	b := &Bundle{Gait: gait}
	b.Services = control.Services{
		Estimator:      NewEstimator(cfg, horizonRows),
		Gait:           gait,
		Footsteps:      NewFootstepPlanner(gait, cfg),
		States:         NewStatePlanner(horizonRows, cfg),
		FootTrajectory: NewSwingGenerator(gait, cfg),
		Kinematics:     Kinematics{},
		MPC:            NewForcePlanner(cfg),
		WBC:            NewWBC(cfg),
	}
	if cfg.Mode == control.ModeExtended {
		b.Surfaces = NewSurfacePlanner(ctx, 0.1)
		b.Services.Surfaces = b.Surfaces
	}
	return b
}

func (b *Bundle) Close() error {
	if b.Surfaces != nil {
		return b.Surfaces.Close()
	}
	return nil
}
