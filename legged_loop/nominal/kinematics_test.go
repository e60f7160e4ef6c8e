package nominal

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestLegIKInvertsFK(t *testing.T) {
	tests := [][3]float64{
		{0, 0.764, -1.407},
		{0.1, 0.5, -1.0},
		{-0.2, 1.0, -1.8},
	}
	for _, q := range tests {
		got := legIK(legFK(q))
		for j := range q {
			if math.Abs(got[j]-q[j]) > 1e-9 {
				t.Errorf("IK(FK(%v)) = %v", q, got)
				break
			}
		}
	}
}

func TestStandingHeight(t *testing.T) {
	feet := FeetInBase([]float64{0, 0.764, -1.407, 0, 0.764, -1.407, 0, 0.764, -1.407, 0, 0.764, -1.407})
	for i, f := range feet {
		if math.Abs(f.Z+0.2436) > 1e-3 {
			t.Errorf("foot %d height %v, want about -0.2436", i, f.Z)
		}
		if math.Abs(math.Abs(f.Y)-0.14695) > 1e-12 {
			t.Errorf("foot %d lateral offset %v", i, f.Y)
		}
	}
}

func TestKinematicsWorldFrame(t *testing.T) {
	q := make([]float64, 18)
	q[0], q[1], q[2], q[5] = 1, 2, 0.3, math.Pi/2
	copy(q[6:], []float64{0, 0.764, -1.407, 0, 0.764, -1.407, 0, 0.764, -1.407, 0, 0.764, -1.407})

	base := FeetInBase(q[6:])
	world := Kinematics{}.FeetPositions(q, nil)
	// A quarter turn maps base x onto world y.
	want := r3.Vector{X: 1 - base[0].Y, Y: 2 + base[0].X, Z: 0.3 + base[0].Z}
	if world[0].Sub(want).Norm() > 1e-9 {
		t.Fatalf("world foot = %v, want %v", world[0], want)
	}
}
