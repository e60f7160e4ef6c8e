package nominal

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"

	"legged-ctrl-core/legged_loop/control"
)

func TestSurfacePlannerRunsAsync(t *testing.T) {
	p := NewSurfacePlanner(context.Background(), 0.1)
	defer p.Close()

	if _, ok := p.Poll(); ok {
		t.Fatal("result before any request")
	}
	p.Run(control.SurfaceRequest{
		Gait:    control.NewGaitPattern([][]bool{{true, false}, {false, true}}),
		Targets: []r3.Vector{{X: 0.2, Y: 0.1}, {X: -0.2, Y: -0.1}},
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		plan, ok := p.Poll()
		if ok {
			if plan.Iteration != 1 || !plan.Success || len(plan.Surfaces) != 2 {
				t.Fatalf("plan = %+v", plan)
			}
			if plan.Surfaces[0][0].Sub(r3.Vector{X: 0.1}).Norm() > 1e-12 {
				t.Errorf("surface corner = %v", plan.Surfaces[0][0])
			}
			if plan.FeetPos[0][1] != (r3.Vector{}) || plan.FeetPos[1][1].X != -0.2 {
				t.Errorf("feet per phase = %v", plan.FeetPos)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("surface planner did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSurfacePlannerRunDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewSurfacePlanner(ctx, 0.1)
	defer p.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Run(control.SurfaceRequest{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run blocked with a stopped worker")
	}
}
