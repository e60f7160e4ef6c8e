package nominal

import (
	"github.com/golang/geo/r3"

	"legged-ctrl-core/legged_loop/control"
)

// SwingGenerator moves swinging feet from lift-off to target along a
// smoothstep in the plane with a parabolic apex. Stance feet hold, or follow
// the measured position when feedback is given.
type SwingGenerator struct {
	gait   *Gait
	dt     float64
	tSwing float64
	height float64

	pos, vel, acc, jerk []r3.Vector
	start               []r3.Vector
	elapsed             []float64
}

// NewSwingGenerator starts with the feet under a robot standing at the
// initial joint configuration.
func NewSwingGenerator(gait *Gait, cfg control.Config) *SwingGenerator {
	q := make([]float64, 6+cfg.NumJoints)
	q[2] = cfg.HRef
	copy(q[6:], cfg.InitialJoints)
	feet := Kinematics{}.FeetPositions(q, nil)
	for i := range feet {
		feet[i].Z = 0
	}
	n := len(feet)
	return &SwingGenerator{
		gait:    gait,
		dt:      cfg.DtWBC,
		tSwing:  float64(gait.rows) / 2 * cfg.DtMPC,
		height:  0.05,
		pos:     feet,
		vel:     make([]r3.Vector, n),
		acc:     make([]r3.Vector, n),
		jerk:    make([]r3.Vector, n),
		start:   append([]r3.Vector(nil), feet...),
		elapsed: make([]float64, n),
	}
}

func (s *SwingGenerator) Update(tick int, targets []r3.Vector, surfaces *control.SurfacePlan, current []r3.Vector) {
	row := s.gait.CurrentPattern().Row(0)
	for i := range s.pos {
		swing := i < len(row) && !row[i] && i < len(targets)
		if !swing {
			s.elapsed[i] = 0
			if i < len(current) {
				s.pos[i] = current[i]
			}
			s.start[i] = s.pos[i]
			s.vel[i], s.acc[i], s.jerk[i] = r3.Vector{}, r3.Vector{}, r3.Vector{}
			continue
		}

		s.elapsed[i] += s.dt
		T := s.tSwing
		a := control.ClampFloat(s.elapsed[i]/T, 0, 1)
		// smoothstep and its time derivatives
		sm := 3*a*a - 2*a*a*a
		ds := (6*a - 6*a*a) / T
		dds := (6 - 12*a) / (T * T)
		ddds := -12 / (T * T * T)
		// apex bump 4h a(1-a)
		bz := 4 * s.height * a * (1 - a)
		dbz := 4 * s.height * (1 - 2*a) / T
		ddbz := -8 * s.height / (T * T)

		d := targets[i].Sub(s.start[i])
		s.pos[i] = s.start[i].Add(d.Mul(sm)).Add(r3.Vector{Z: bz})
		s.vel[i] = d.Mul(ds).Add(r3.Vector{Z: dbz})
		s.acc[i] = d.Mul(dds).Add(r3.Vector{Z: ddbz})
		s.jerk[i] = d.Mul(ddds)
	}
}

func (s *SwingGenerator) Position() []r3.Vector     { return append([]r3.Vector(nil), s.pos...) }
func (s *SwingGenerator) Velocity() []r3.Vector     { return append([]r3.Vector(nil), s.vel...) }
func (s *SwingGenerator) Acceleration() []r3.Vector { return append([]r3.Vector(nil), s.acc...) }
func (s *SwingGenerator) Jerk() []r3.Vector         { return append([]r3.Vector(nil), s.jerk...) }

func (s *SwingGenerator) TimeToLiftoff() []float64 {
	out := make([]float64, len(s.elapsed))
	for i, e := range s.elapsed {
		out[i] = s.tSwing - e
	}
	return out
}
