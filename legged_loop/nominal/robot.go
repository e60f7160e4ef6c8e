// Package nominal holds simple stand-ins for the controller's external
// collaborators, enough to run the whole loop without a real robot.
package nominal

import (
	"context"
	"sync"

	"legged-ctrl-core/legged_loop/control"
)

// standingJoints is what the fake robot reports: a crouched stance with
// small per-leg calibration offsets.
var standingJoints = []float64{
	0.0, 0.764, -1.407,
	0.0, 0.76407, -1.4,
	0.0, 0.76407, -1.407,
	0.0, 0.764, -1.407,
}

// FakeRobot never moves: joints hold standingJoints, the IMU reads zero and
// commands are recorded but have no effect.
type FakeRobot struct {
	mu       sync.Mutex
	joints   []float64
	last     control.ActuatorCommand
	commands int
}

func NewFakeRobot(numJoints int) *FakeRobot {
	j := make([]float64, numJoints)
	for i := range j {
		j[i] = standingJoints[i%len(standingJoints)]
	}
	return &FakeRobot{joints: j}
}

func (r *FakeRobot) ReadSample(ctx context.Context) (control.SensorSample, error) {
	if err := ctx.Err(); err != nil {
		return control.SensorSample{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return control.SensorSample{
		JointPositions:  append([]float64(nil), r.joints...),
		JointVelocities: make([]float64, len(r.joints)),
	}, nil
}

func (r *FakeRobot) SendCommand(ctx context.Context, cmd control.ActuatorCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = cmd.Clone()
	r.commands++
	return nil
}

// LastCommand returns the most recent command and how many were sent.
func (r *FakeRobot) LastCommand() (control.ActuatorCommand, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last.Clone(), r.commands
}

func (r *FakeRobot) Close() error { return nil }
