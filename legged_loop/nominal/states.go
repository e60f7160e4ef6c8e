package nominal

import (
	"legged-ctrl-core/legged_loop/control"
)

// StatePlanner integrates the reference twist at constant velocity over the
// horizon, keeping the base level at the reference height.
type StatePlanner struct {
	steps int
	dt    float64
	hRef  float64
}

func NewStatePlanner(steps int, cfg control.Config) *StatePlanner {
	return &StatePlanner{steps: steps, dt: cfg.DtMPC, hRef: cfg.HRef}
}

func (p *StatePlanner) ComputeReference(q, v, vref []float64, newPhase bool) control.ReferenceTrajectory {
	q, v, vref = padded(q, 6), padded(v, 6), padded(vref, 6)
	states := make([][]float64, p.steps+1)

	cur := make([]float64, 12)
	copy(cur[:6], q)
	copy(cur[6:], v)
	states[0] = cur

	for i := 1; i <= p.steps; i++ {
		t := float64(i) * p.dt
		yaw := q[5] + vref[5]*t
		// Horizontal-frame reference velocity rotated with the mean heading.
		mid := control.YawRotation(q[5] + vref[5]*t/2)
		col := make([]float64, 12)
		col[0] = q[0] + (mid.At(0, 0)*vref[0]+mid.At(0, 1)*vref[1])*t
		col[1] = q[1] + (mid.At(1, 0)*vref[0]+mid.At(1, 1)*vref[1])*t
		col[2] = p.hRef
		col[5] = yaw
		copy(col[6:], vref)
		states[i] = col
	}
	return control.ReferenceTrajectory{States: states}
}
