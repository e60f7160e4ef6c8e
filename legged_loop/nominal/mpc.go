package nominal

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"legged-ctrl-core/legged_loop/control"
)

// ForcePlanner shares the robot's weight evenly between stance feet on
// every horizon row. It is the warm start a real MPC would refine.
type ForcePlanner struct {
	feet   int
	weight float64
}

func NewForcePlanner(cfg control.Config) *ForcePlanner {
	return &ForcePlanner{feet: cfg.NumFeet, weight: cfg.Mass * 9.81}
}

func (m *ForcePlanner) Solve(req control.MPCRequest) (control.MPCResult, error) {
	rows := req.Gait.Rows()
	if rows == 0 {
		return control.MPCResult{}, fmt.Errorf("empty gait: %w", control.ErrInfeasible)
	}
	forces := make([][]float64, rows)
	for row := 0; row < rows; row++ {
		w := req.Gait.ContactWeights(row)
		stance := floats.Sum(w)
		if stance == 0 && row == 0 {
			return control.MPCResult{}, fmt.Errorf("no stance foot at tick %d: %w", req.Tick, control.ErrInfeasible)
		}
		forces[row] = make([]float64, 3*m.feet)
		if stance == 0 {
			continue
		}
		for f := 0; f < m.feet && f < len(w); f++ {
			forces[row][3*f+2] = m.weight * w[f] / stance
		}
	}

	var states [][]float64
	if len(req.Reference.States) > 1 {
		states = req.Reference.Clone().States[1:]
	}
	return control.MPCResult{Tick: req.Tick, States: states, Forces: forces}, nil
}
