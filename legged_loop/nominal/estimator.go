package nominal

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"

	"legged-ctrl-core/legged_loop/control"
)

const (
	velocityLimit = 50.0 // rad/s
	torqueLimit   = 8.0  // Nm
)

// jointLimits per leg: abduction, hip flexion, knee.
var jointLimits = [3]float64{0.4 * math.Pi, 80 * math.Pi / 180, math.Pi}

// Estimator trusts the IMU attitude and, when present, motion capture for
// the base pose. Without motion capture the base stays at the reference
// height with zero linear velocity.
type Estimator struct {
	joints int
	hRef   float64

	window [][6]float64 // ring of horizontal twists
	next   int
	filled int

	est control.Estimate
}

func NewEstimator(cfg control.Config, window int) *Estimator {
	if window < 1 {
		window = 1
	}
	return &Estimator{
		joints: cfg.NumJoints,
		hRef:   cfg.HRef,
		window: make([][6]float64, window),
	}
}

func (e *Estimator) Update(in control.EstimatorInput) {
	s := in.Sample
	n := 6 + e.joints

	pose := [6]float64{2: e.hRef, 3: s.Attitude[0], 4: s.Attitude[1], 5: s.Attitude[2]}
	if s.BasePose != nil {
		pose = *s.BasePose
	}
	var bLin r3.Vector
	if s.BaseVelocity != nil {
		bLin = r3.Vector{X: s.BaseVelocity[0], Y: s.BaseVelocity[1], Z: s.BaseVelocity[2]}
	}
	bAng := r3.Vector{X: s.AngularRate[0], Y: s.AngularRate[1], Z: s.AngularRate[2]}

	oRb := control.RPYToMatrix(pose[3], pose[4], pose[5])
	oRh := control.YawRotation(pose[5])
	oLin, oAng := control.Rotate(oRb, bLin), control.Rotate(oRb, bAng)
	hLin, hAng := control.RotateT(oRh, oLin), control.RotateT(oRh, oAng)

	q := make([]float64, n)
	copy(q, pose[:])
	copy(q[6:], s.JointPositions)

	v := make([]float64, n)
	putVec(v[0:3], oLin)
	putVec(v[3:6], oAng)
	copy(v[6:], s.JointVelocities)

	hq := append([]float64(nil), q...)
	hq[0], hq[1], hq[5] = 0, 0, 0
	hv := append([]float64(nil), v...)
	putVec(hv[0:3], hLin)
	putVec(hv[3:6], hAng)

	bv := append([]float64(nil), v...)
	putVec(bv[0:3], bLin)
	putVec(bv[3:6], bAng)

	var tw [6]float64
	copy(tw[:], hv[:6])
	e.window[e.next] = tw
	e.next = (e.next + 1) % len(e.window)
	if e.filled < len(e.window) {
		e.filled++
	}
	windowed := make([]float64, 6)
	for i := 0; i < e.filled; i++ {
		floats.Add(windowed, e.window[i][:])
	}
	floats.Scale(1/float64(e.filled), windowed)

	e.est = control.Estimate{
		Q: q, V: v, HQ: hq, HV: hv, BV: bv,
		HVWindowed: windowed,
		VRef:       append([]float64(nil), in.VRef...),
		ARef:       make([]float64, 6),
		QFilt:      append([]float64(nil), q...),
		VSecu:      append([]float64(nil), s.JointVelocities...),
		Yaw:        pose[5],
		OTh:        r3.Vector{X: pose[0], Y: pose[1]},
	}
}

func (e *Estimator) Estimate() control.Estimate { return e.est }

// SecurityCheck returns the first violated limit: joint range, then joint
// velocity, then commanded torque.
func (e *Estimator) SecurityCheck(tauFF []float64) control.FaultCode {
	if len(e.est.QFilt) > 6 {
		for i, q := range e.est.QFilt[6:] {
			if math.Abs(q) > jointLimits[i%3] {
				return control.FaultJointLimit
			}
		}
	}
	for _, v := range e.est.VSecu {
		if math.Abs(v) > velocityLimit {
			return control.FaultVelocityLimit
		}
	}
	for _, t := range tauFF {
		if math.Abs(t) > torqueLimit {
			return control.FaultTorqueLimit
		}
	}
	return control.FaultNone
}

func putVec(dst []float64, v r3.Vector) {
	dst[0], dst[1], dst[2] = v.X, v.Y, v.Z
}
