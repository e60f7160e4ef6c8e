package control

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
)

func gateInputs(k int) MPCInputs {
	return MPCInputs{
		Tick:      k,
		Reference: ReferenceTrajectory{States: [][]float64{make([]float64, 12)}},
		Gait:      NewGaitPattern([][]bool{{true, true, true, true}}),
	}
}

func TestMPCGateHoldsResultOnFailure(t *testing.T) {
	solver := &fakeMPC{feet: 4, failAt: map[int]bool{20: true, 40: true}}
	gate := NewMPCGate(solver, testLogger())

	if !gate.Run(true, gateInputs(0)) {
		t.Fatal("solve at tick 0 should succeed")
	}
	before := gate.Latest()

	for _, k := range []int{20, 40} {
		if gate.Run(true, gateInputs(k)) {
			t.Fatalf("solve at tick %d should fail", k)
		}
		if got := gate.Latest(); !got.Equal(before) {
			t.Fatalf("result changed after failure at tick %d: %+v vs %+v", k, got, before)
		}
	}

	d := gate.Diagnostics()
	if d.Solves != 3 || d.Failures != 2 || d.LastFailure != 40 || d.ResultTick != 0 {
		t.Fatalf("diagnostics = %+v", d)
	}
	if d.LastError == "" {
		t.Error("last error should be recorded")
	}
}

func TestMPCGateSkipsFineTicks(t *testing.T) {
	solver := &fakeMPC{feet: 4}
	gate := NewMPCGate(solver, testLogger())
	if gate.Run(false, gateInputs(3)) {
		t.Fatal("gate ran on a fine tick")
	}
	if len(solver.ticks) != 0 {
		t.Fatalf("solver called %d times", len(solver.ticks))
	}
}

func TestMPCGateStoresCopy(t *testing.T) {
	gate := NewMPCGate(&fakeMPC{feet: 4}, testLogger())
	gate.Run(true, gateInputs(0))

	got := gate.Latest()
	got.Forces[0][2] = -100
	if gate.Latest().Forces[0][2] == -100 {
		t.Fatal("Latest exposed internal storage")
	}
}

func TestMPCGateFootstepRequest(t *testing.T) {
	solver := &fakeMPC{feet: 4}
	gate := NewMPCGate(solver, testLogger())
	cfg := DefaultConfig()
	st := testRobotState(cfg, 0)
	st.OTh = r3.Vector{X: 1, Y: 2}

	in := gateInputs(0)
	in.FootstepMPC = true
	in.State = &st
	in.Targets = []r3.Vector{{X: 1.2, Y: 2.1}}
	in.Feet = &fakeFeet{feet: 4}
	gate.Run(true, in)

	req := solver.reqs[0]
	if len(req.TargetsH) != 1 || !vecNear(req.TargetsH[0], r3.Vector{X: 0.2, Y: 0.1}, 1e-12) {
		t.Fatalf("horizontal targets = %v", req.TargetsH)
	}
	if req.ORh == nil || len(req.LiftoffIn) != 4 {
		t.Fatal("footstep request missing frame or lift-off times")
	}
}

func TestFakeMPCErrorIsInfeasible(t *testing.T) {
	_, err := (&fakeMPC{failAt: map[int]bool{0: true}}).Solve(MPCRequest{})
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("err = %v", err)
	}
}
