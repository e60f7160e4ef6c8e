package nominal

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"

	"legged-ctrl-core/legged_loop/control"
)

// SurfacePlanner selects a flat square contact surface around every target
// on a worker goroutine. Run never blocks: a request still queued when a
// new one arrives is replaced.
type SurfacePlanner struct {
	half float64
	reqs chan control.SurfaceRequest
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu        sync.Mutex
	latest    control.SurfacePlan
	finished  bool
	iteration int
}

// NewSurfacePlanner starts the worker; it stops when ctx is done or Close
// is called.
func NewSurfacePlanner(ctx context.Context, halfSize float64) *SurfacePlanner {
	p := &SurfacePlanner{
		half: halfSize,
		reqs: make(chan control.SurfaceRequest, 1),
		done: make(chan struct{}),
	}
	p.wg.Add(1)
	go p.worker(ctx)
	return p
}

func (p *SurfacePlanner) Run(req control.SurfaceRequest) {
	for {
		select {
		case p.reqs <- req:
			return
		default:
		}
		select {
		case <-p.reqs:
		default:
		}
	}
}

func (p *SurfacePlanner) Poll() (control.SurfacePlan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.finished
}

func (p *SurfacePlanner) Close() error {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
	return nil
}

func (p *SurfacePlanner) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case req := <-p.reqs:
			plan := p.solve(req)
			p.mu.Lock()
			p.iteration++
			plan.Iteration = p.iteration
			p.latest = plan
			p.finished = true
			p.mu.Unlock()
		}
	}
}

func (p *SurfacePlanner) solve(req control.SurfaceRequest) control.SurfacePlan {
	plan := control.SurfacePlan{
		Success:  true,
		Surfaces: make([][]r3.Vector, len(req.Targets)),
	}
	for i, t := range req.Targets {
		plan.Surfaces[i] = []r3.Vector{
			{X: t.X - p.half, Y: t.Y - p.half},
			{X: t.X + p.half, Y: t.Y - p.half},
			{X: t.X + p.half, Y: t.Y + p.half},
			{X: t.X - p.half, Y: t.Y + p.half},
		}
	}
	rows := req.Gait.Rows()
	plan.FeetPos = make([][]r3.Vector, rows)
	for row := 0; row < rows; row++ {
		plan.FeetPos[row] = make([]r3.Vector, len(req.Targets))
		for i, t := range req.Targets {
			if req.Gait.InContact(row, i) {
				plan.FeetPos[row][i] = r3.Vector{X: t.X, Y: t.Y}
			}
		}
	}
	return plan
}
