package nominal

import (
	"math"

	"github.com/golang/geo/r3"

	"legged-ctrl-core/legged_loop/control"
)

// FootstepPlanner places touchdowns with the Raibert heuristic: under the
// shoulder, shifted by half a stance duration of travel plus a velocity
// error correction.
type FootstepPlanner struct {
	gait    *Gait
	tStance float64
	gain    float64
	hRef    float64
}

func NewFootstepPlanner(gait *Gait, cfg control.Config) *FootstepPlanner {
	return &FootstepPlanner{
		gait:    gait,
		tStance: float64(gait.rows) / 2 * cfg.DtMPC,
		gain:    0.03,
		hRef:    cfg.HRef,
	}
}

func (p *FootstepPlanner) Plan(req control.FootstepRequest) control.FootstepPlan {
	var yaw float64
	var pos r3.Vector
	if len(req.Q) >= 6 {
		pos = r3.Vector{X: req.Q[0], Y: req.Q[1]}
		yaw = req.Q[5]
	}
	v := padded(req.HVWindowed, 6)
	vref := padded(req.VRef, 6)
	oRh := control.YawRotation(yaw)

	limbs := p.gait.limbs
	targets := make([]r3.Vector, limbs)
	for i := range targets {
		sh := shoulders[i%len(shoulders)]
		sh.Z = 0
		shift := r3.Vector{
			X: 0.5*p.tStance*v[0] + p.gain*(v[0]-vref[0]),
			Y: 0.5*p.tStance*v[1] + p.gain*(v[1]-vref[1]),
		}
		// Centrifugal term from yaw rate.
		shift.X += 0.5 * math.Sqrt(p.hRef/9.81) * (v[1] * vref[5])
		shift.Y -= 0.5 * math.Sqrt(p.hRef/9.81) * (v[0] * vref[5])
		targets[i] = control.HorizontalToWorld(oRh, pos, sh.Add(shift))
		if h, ok := surfaceHeight(req.Surfaces, i); ok {
			targets[i].Z = h
		}
	}

	pattern := p.gait.CurrentPattern()
	steps := make([][]r3.Vector, pattern.Rows())
	for row := range steps {
		steps[row] = make([]r3.Vector, limbs)
		for i := 0; i < limbs; i++ {
			if pattern.InContact(row, i) {
				steps[row][i] = targets[i]
			}
		}
	}
	return control.FootstepPlan{Targets: targets, Steps: steps}
}

// surfaceHeight is the mean vertex height of the surface selected for limb.
func surfaceHeight(sp *control.SurfacePlan, limb int) (float64, bool) {
	if sp == nil || !sp.Success || limb >= len(sp.Surfaces) || len(sp.Surfaces[limb]) == 0 {
		return 0, false
	}
	var z float64
	for _, v := range sp.Surfaces[limb] {
		z += v.Z
	}
	return z / float64(len(sp.Surfaces[limb])), true
}

func padded(s []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, s)
	return out
}
