package control

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// RPYToMatrix builds Rz(yaw) * Ry(pitch) * Rx(roll).
func RPYToMatrix(roll, pitch, yaw float64) *mat.Dense {
	cr, sr := math.Cos(roll), math.Sin(roll)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	return mat.NewDense(3, 3, []float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr,
		-sp, cp * sr, cp * cr,
	})
}

// MatrixToRPY inverts RPYToMatrix for |pitch| < pi/2.
func MatrixToRPY(r mat.Matrix) (roll, pitch, yaw float64) {
	pitch = math.Atan2(-r.At(2, 0), math.Hypot(r.At(0, 0), r.At(1, 0)))
	roll = math.Atan2(r.At(2, 1), r.At(2, 2))
	yaw = math.Atan2(r.At(1, 0), r.At(0, 0))
	return roll, pitch, yaw
}

// YawRotation is the world orientation of the horizontal frame (oRh).
func YawRotation(yaw float64) *mat.Dense {
	return RPYToMatrix(0, 0, yaw)
}

// TiltRotation is the roll/pitch-only rotation hRb.
func TiltRotation(roll, pitch float64) *mat.Dense {
	return RPYToMatrix(roll, pitch, 0)
}

func Identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// Rotate returns R v.
func Rotate(r mat.Matrix, v r3.Vector) r3.Vector {
	var out mat.VecDense
	out.MulVec(r, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// RotateT returns R^T v.
func RotateT(r mat.Matrix, v r3.Vector) r3.Vector {
	return Rotate(r.T(), v)
}

// WorldToHorizontal expresses a world point in the horizontal frame.
func WorldToHorizontal(oRh mat.Matrix, oTh, p r3.Vector) r3.Vector {
	return RotateT(oRh, p.Sub(oTh))
}

func HorizontalToWorld(oRh mat.Matrix, oTh, p r3.Vector) r3.Vector {
	return Rotate(oRh, p).Add(oTh)
}

// HorizontalToBase rotates a horizontal-frame vector with hRb, the
// convention the whole-body controller expects.
func HorizontalToBase(hRb mat.Matrix, v r3.Vector) r3.Vector {
	return Rotate(hRb, v)
}

func BaseToHorizontal(hRb mat.Matrix, v r3.Vector) r3.Vector {
	return RotateT(hRb, v)
}

// BaseFromWorld is hRb * oRh^T: the rotation that takes world-aligned foot
// targets into the frame the whole-body controller works in. Swapping the
// factors or dropping the transpose does not crash; it silently
// misdistributes contact forces.
func BaseFromWorld(hRb, oRh mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(hRb, oRh.T())
	return &out
}

// ToFrame applies R (p - origin) to every point. Pass a zero origin for
// velocities and accelerations.
func ToFrame(r mat.Matrix, origin r3.Vector, pts []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = Rotate(r, p.Sub(origin))
	}
	return out
}

// FromFrame inverts ToFrame: R^T p + origin.
func FromFrame(r mat.Matrix, origin r3.Vector, pts []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = RotateT(r, p).Add(origin)
	}
	return out
}

// mat3Copy returns an independent copy of r, or the identity when r is nil.
func mat3Copy(r *mat.Dense) *mat.Dense {
	if r == nil {
		return Identity3()
	}
	return mat.DenseCopyOf(r)
}
