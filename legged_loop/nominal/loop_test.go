package nominal

import (
	"context"
	"io"
	"math"
	"testing"

	"legged-ctrl-core/legged_loop/control"
	"legged-ctrl-core/utils"
)

func runNominal(t *testing.T, cfg control.Config, ticks int, js control.JoystickInput) (*control.Orchestrator, *FakeRobot) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bundle := NewBundle(ctx, cfg)
	defer bundle.Close()
	o, err := control.NewOrchestrator(cfg, bundle.Services, utils.NewLogger(io.Discard, utils.INFO))
	if err != nil {
		t.Fatal(err)
	}
	robot := NewFakeRobot(cfg.NumJoints)
	o.Prime()
	for k := 0; k < ticks; k++ {
		sample, err := robot.ReadSample(ctx)
		if err != nil {
			t.Fatal(err)
		}
		cmd := o.Step(sample, js)
		for i := range cmd.QDes {
			if math.IsNaN(cmd.QDes[i]) || math.IsNaN(cmd.TauFF[i]) {
				t.Fatalf("tick %d joint %d: NaN in command %+v", k, i, cmd)
			}
		}
		if err := robot.SendCommand(ctx, cmd); err != nil {
			t.Fatal(err)
		}
	}
	return o, robot
}

func TestNominalLoopStanding(t *testing.T) {
	cfg := control.DefaultConfig()
	o, robot := runNominal(t, cfg, 500, control.JoystickInput{})

	if s := o.Status(); s.Faulted {
		t.Fatalf("standing robot faulted: %+v", s)
	}
	cmd, n := robot.LastCommand()
	if n != 500 {
		t.Fatalf("commands sent = %d", n)
	}
	for i, q := range cmd.QDes {
		if math.Abs(q-cfg.InitialJoints[i]) > 0.05 {
			t.Errorf("joint %d desired %v drifted from stance %v", i, q, cfg.InitialJoints[i])
		}
	}
	if d := o.Diagnostics(); d.MPC.Failures != 0 || d.MPC.Solves != 26 {
		t.Errorf("mpc diagnostics = %+v", d.MPC)
	}
}

func TestNominalLoopTrot(t *testing.T) {
	cfg := control.DefaultConfig()
	js := control.JoystickInput{GaitCode: GaitTrot}
	js.VRef[0] = 0.2
	o, _ := runNominal(t, cfg, 1000, js)
	if s := o.Status(); s.Faulted {
		t.Fatalf("trotting robot faulted: %+v", s)
	}
}

func TestNominalLoopExtended(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.Mode = control.ModeExtended
	js := control.JoystickInput{GaitCode: GaitTrot}
	o, _ := runNominal(t, cfg, 400, js)
	if s := o.Status(); s.Faulted {
		t.Fatalf("extended loop faulted: %+v", s)
	}
	if o.Diagnostics().Pipeline != "extended" {
		t.Fatal("extended pipeline not selected")
	}
}
