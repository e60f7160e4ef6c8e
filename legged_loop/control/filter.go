package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LowPassFilter is a first-order IIR filter over a fixed-size vector.
// Angular channels difference along the shortest arc and keep their output
// wrapped to (-pi, pi].
type LowPassFilter struct {
	alpha   float64
	angular []bool
	y       []float64
	diff    []float64
	primed  bool
}

// NewLowPassFilter discretises a cutoffHz single pole exactly at period dt,
// so N samples attenuate a step by exp(-2*pi*cutoffHz*N*dt).
func NewLowPassFilter(size int, cutoffHz, dt float64, angular ...int) (*LowPassFilter, error) {
	if size <= 0 || cutoffHz <= 0 || dt <= 0 {
		return nil, fmt.Errorf("%w: filter size=%d cutoff=%g dt=%g", ErrInvalidConfig, size, cutoffHz, dt)
	}
	f := &LowPassFilter{
		alpha:   1 - math.Exp(-2*math.Pi*cutoffHz*dt),
		angular: make([]bool, size),
		y:       make([]float64, size),
		diff:    make([]float64, size),
	}
	for _, ch := range angular {
		if ch < 0 || ch >= size {
			return nil, fmt.Errorf("%w: angular channel %d outside filter of size %d", ErrVectorSize, ch, size)
		}
		f.angular[ch] = true
	}
	return f, nil
}

// Alpha is the per-sample blend factor.
func (f *LowPassFilter) Alpha() float64 { return f.alpha }

// Filter feeds one sample and returns the new output. The first sample
// primes the state. A wrong-sized sample leaves the state untouched.
func (f *LowPassFilter) Filter(x []float64) []float64 {
	if len(x) != len(f.y) {
		return f.Value()
	}
	if !f.primed {
		copy(f.y, x)
		for i, a := range f.angular {
			if a {
				f.y[i] = WrapAngle(f.y[i])
			}
		}
		f.primed = true
		return f.Value()
	}

	for i := range x {
		if f.angular[i] {
			f.diff[i] = AngleDiff(x[i], f.y[i])
		} else {
			f.diff[i] = x[i] - f.y[i]
		}
	}
	floats.AddScaled(f.y, f.alpha, f.diff)
	for i, a := range f.angular {
		if a {
			f.y[i] = WrapAngle(f.y[i])
		}
	}
	return f.Value()
}

// Value returns a copy of the current output.
func (f *LowPassFilter) Value() []float64 {
	return cloneFloats(f.y)
}

func (f *LowPassFilter) Reset() {
	for i := range f.y {
		f.y[i] = 0
	}
	f.primed = false
}

// FilterChain smooths the signals that cross from the fine-rate estimator
// into the coarse-rate planner and MPC. It is updated on coarse ticks only;
// fine ticks in between read the held values.
type FilterChain struct {
	pose   *LowPassFilter // x y z roll pitch yaw
	vel    *LowPassFilter // horizontal base twist
	vref   *LowPassFilter // reference twist
	pose3D *LowPassFilter // extended mode only
	vel3D  *LowPassFilter

	qFilt  []float64 // filtered base pose + raw joints
	hvFilt []float64
	vrFilt []float64
	q3D    []float64
	v3D    []float64
}

func NewFilterChain(cfg Config, extended bool) (*FilterChain, error) {
	n := 6 + cfg.NumJoints
	c := &FilterChain{
		qFilt:  make([]float64, n),
		hvFilt: make([]float64, 6),
		vrFilt: make([]float64, 6),
	}
	var err error
	if c.pose, err = NewLowPassFilter(6, cfg.FilterCutoffHz, cfg.DtMPC, 3, 4, 5); err != nil {
		return nil, err
	}
	if c.vel, err = NewLowPassFilter(6, cfg.FilterCutoffHz, cfg.DtMPC); err != nil {
		return nil, err
	}
	if c.vref, err = NewLowPassFilter(6, cfg.FilterCutoffHz, cfg.DtMPC); err != nil {
		return nil, err
	}
	if extended {
		if c.pose3D, err = NewLowPassFilter(6, cfg.FilterCutoffHz, cfg.DtMPC, 3, 4, 5); err != nil {
			return nil, err
		}
		if c.vel3D, err = NewLowPassFilter(6, cfg.FilterCutoffHz, cfg.DtMPC); err != nil {
			return nil, err
		}
		c.q3D = make([]float64, n)
		c.v3D = make([]float64, n)
	}
	return c, nil
}

// Update runs every filter once. Joint channels pass through unfiltered.
func (c *FilterChain) Update(st *RobotState) {
	q := st.World.Q
	copy(c.qFilt[:6], c.pose.Filter(q[:6]))
	copy(c.qFilt[6:], q[6:])
	copy(c.hvFilt, c.vel.Filter(st.Horizontal.V[:6]))
	copy(c.vrFilt, c.vref.Filter(st.VRef[:6]))

	if c.pose3D != nil {
		copy(c.q3D[:6], c.pose3D.Filter(st.QFilt[:6]))
		copy(c.q3D[6:], st.QFilt[6:])
		copy(c.v3D[:6], c.vel3D.Filter(st.Base.V[:6]))
		copy(c.v3D[6:], st.Base.V[6:])
	}
}

// Pose is the filtered configuration (base pose filtered, joints raw).
func (c *FilterChain) Pose() []float64        { return cloneFloats(c.qFilt) }
func (c *FilterChain) Velocity() []float64    { return cloneFloats(c.hvFilt) }
func (c *FilterChain) RefVelocity() []float64 { return cloneFloats(c.vrFilt) }

// Pose3D and Velocity3D are nil outside extended mode.
func (c *FilterChain) Pose3D() []float64     { return cloneFloats(c.q3D) }
func (c *FilterChain) Velocity3D() []float64 { return cloneFloats(c.v3D) }
