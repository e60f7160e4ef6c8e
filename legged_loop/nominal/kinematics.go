package nominal

import (
	"math"

	"github.com/golang/geo/r3"

	"legged-ctrl-core/legged_loop/control"
)

const (
	upperLeg = 0.16
	lowerLeg = 0.16
)

// shoulders in base frame, limb order FL, FR, HL, HR.
var shoulders = []r3.Vector{
	{X: 0.1946, Y: 0.14695},
	{X: 0.1946, Y: -0.14695},
	{X: -0.1946, Y: 0.14695},
	{X: -0.1946, Y: -0.14695},
}

// legFK is the foot position relative to the shoulder for joint angles
// (abduction, hip, knee). Hip and knee act in the sagittal plane, which
// the abduction joint rolls about the x axis.
func legFK(q [3]float64) r3.Vector {
	h, k := q[1], q[2]
	px := -upperLeg*math.Sin(h) - lowerLeg*math.Sin(h+k)
	pz := -upperLeg*math.Cos(h) - lowerLeg*math.Cos(h+k)
	sa, ca := math.Sin(q[0]), math.Cos(q[0])
	return r3.Vector{X: px, Y: -sa * pz, Z: ca * pz}
}

// legIK inverts legFK with the knee bent backwards (negative). Unreachable
// points are clamped to the workspace boundary.
func legIK(d r3.Vector) [3]float64 {
	a := math.Atan2(d.Y, -d.Z)
	r := math.Hypot(d.Y, d.Z)
	c := (d.X*d.X + r*r - upperLeg*upperLeg - lowerLeg*lowerLeg) / (2 * upperLeg * lowerLeg)
	k := -math.Acos(control.ClampFloat(c, -1, 1))
	A := upperLeg + lowerLeg*math.Cos(k)
	B := lowerLeg * math.Sin(k)
	h := math.Atan2(-d.X, r) - math.Atan2(B, A)
	return [3]float64{a, h, k}
}

// legJacobian is d(legFK)/dq by central differences, column per joint.
func legJacobian(q [3]float64) [3]r3.Vector {
	const eps = 1e-6
	var j [3]r3.Vector
	for i := 0; i < 3; i++ {
		qp, qm := q, q
		qp[i] += eps
		qm[i] -= eps
		j[i] = legFK(qp).Sub(legFK(qm)).Mul(1 / (2 * eps))
	}
	return j
}

func legAngles(joints []float64, leg int) [3]float64 {
	var q [3]float64
	copy(q[:], joints[3*leg:3*leg+3])
	return q
}

// FeetInBase returns every foot position in the base frame.
func FeetInBase(joints []float64) []r3.Vector {
	n := len(joints) / 3
	out := make([]r3.Vector, n)
	for leg := 0; leg < n; leg++ {
		out[leg] = shoulders[leg%len(shoulders)].Add(legFK(legAngles(joints, leg)))
	}
	return out
}

// Kinematics implements forward kinematics on the fixed leg geometry.
type Kinematics struct{}

// FeetPositions places the feet in world frame from a 6+N configuration.
func (Kinematics) FeetPositions(q, v []float64) []r3.Vector {
	if len(q) < 6 {
		return nil
	}
	oRb := control.RPYToMatrix(q[3], q[4], q[5])
	base := r3.Vector{X: q[0], Y: q[1], Z: q[2]}
	return control.FromFrame(oRb.T(), base, FeetInBase(q[6:]))
}
