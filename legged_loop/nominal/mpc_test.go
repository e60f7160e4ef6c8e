package nominal

import (
	"errors"
	"math"
	"testing"

	"legged-ctrl-core/legged_loop/control"
)

func TestForcePlannerSharesWeight(t *testing.T) {
	cfg := control.DefaultConfig()
	p := NewForcePlanner(cfg)
	gait := control.NewGaitPattern([][]bool{
		{true, false, false, true},
		{true, true, true, true},
	})
	res, err := p.Solve(control.MPCRequest{Gait: gait})
	if err != nil {
		t.Fatal(err)
	}
	weight := cfg.Mass * 9.81
	for row, f := range res.Forces {
		var total float64
		for foot := 0; foot < 4; foot++ {
			total += f[3*foot+2]
			if !gait.InContact(row, foot) && f[3*foot+2] != 0 {
				t.Errorf("row %d: swing foot %d carries load", row, foot)
			}
		}
		if math.Abs(total-weight) > 1e-9 {
			t.Errorf("row %d total = %v, want %v", row, total, weight)
		}
	}
}

func TestForcePlannerInfeasibleWithoutStance(t *testing.T) {
	p := NewForcePlanner(control.DefaultConfig())
	_, err := p.Solve(control.MPCRequest{Gait: control.NewGaitPattern([][]bool{{false, false, false, false}})})
	if !errors.Is(err, control.ErrInfeasible) {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
}
