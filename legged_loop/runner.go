package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"legged-ctrl-core/legged_loop/control"
	"legged-ctrl-core/legged_loop/nominal"
	"legged-ctrl-core/utils"
)

type RunnerConfig struct {
	SessionPath string
	Interface   string // overrides the session when set
	HTTPAddr    string // overrides the session when set
	Hardware    string // overrides the session when set
}

type Runner struct {
	cfg  RunnerConfig
	log  *utils.Logger
	sess Session

	bundle   *nominal.Bundle
	ctrl     *control.Orchestrator
	source   SensorSource
	sink     ActuatorSink
	can      *CANHardware
	operator *OperatorState
	input    OperatorInput
	server   *http.Server

	diagMu sync.Mutex
	diag   control.Diagnostics
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	sess, err := LoadSession(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if cfg.Hardware != "" {
		sess.Hardware.Kind = cfg.Hardware
	}
	if cfg.Interface != "" {
		sess.Hardware.Interface = cfg.Interface
	}
	if cfg.HTTPAddr != "" {
		sess.Operator.HTTPAddr = cfg.HTTPAddr
	}
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	r := &Runner{cfg: cfg, log: log, sess: sess, operator: &OperatorState{}}
	r.input = r.operator

	r.bundle = nominal.NewBundle(ctx, sess.Control)
	r.ctrl, err = control.NewOrchestrator(sess.Control, r.bundle.Services, log.Named("control"))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("controller: %w", err)
	}
	r.diag = r.ctrl.Diagnostics()

	switch sess.Hardware.Kind {
	case HardwareCAN:
		if err := r.openCAN(ctx); err != nil {
			r.Close()
			return nil, err
		}
	default:
		robot := nominal.NewFakeRobot(sess.Control.NumJoints)
		r.source, r.sink = robot, robot
	}

	if sess.Operator.HTTPAddr != "" {
		srv := NewOperatorServer(r.operator, r.Diagnostics, log.Named("operator"))
		r.server = &http.Server{Addr: sess.Operator.HTTPAddr, Handler: srv.Handler()}
	}
	return r, nil
}

func (r *Runner) openCAN(ctx context.Context) error {
	var cmap *utils.CANMap
	var err error
	if r.sess.Hardware.MapPath != "" {
		cmap, err = utils.LoadCANMap(r.sess.Hardware.MapPath)
	} else {
		cmap, err = utils.DefaultCANMap()
	}
	if err != nil {
		return fmt.Errorf("load can map: %w", err)
	}

	writer, err := utils.NewSocketCANWriter(ctx, r.sess.Hardware.Interface)
	if err != nil {
		return err
	}
	reader, err := utils.NewSocketCANReader(ctx, r.sess.Hardware.Interface)
	if err != nil {
		writer.Close()
		return err
	}
	hw, err := NewCANHardware(cmap, writer, reader, r.sess.Control.NumJoints, r.log.Named("can"))
	if err != nil {
		reader.Close()
		writer.Close()
		return err
	}
	r.can = hw
	r.source, r.sink = hw, hw
	return nil
}

func (r *Runner) Close() {
	if r.source != nil {
		_ = r.source.Close()
	}
	if r.bundle != nil {
		_ = r.bundle.Close()
	}
}

// Diagnostics is the snapshot taken after the last completed tick.
func (r *Runner) Diagnostics() control.Diagnostics {
	r.diagMu.Lock()
	defer r.diagMu.Unlock()
	return r.diag
}

func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if r.can != nil {
		g.Go(func() error { return r.can.ReceiveLoop(gctx) })
	}
	if r.server != nil {
		g.Go(func() error {
			r.log.Info("operator endpoint on %s", r.server.Addr)
			if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("operator server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			return r.server.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return r.controlLoop(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Runner) controlLoop(ctx context.Context) error {
	period := time.Duration(r.sess.Control.DtWBC * float64(time.Second))
	var maxTicks int
	if r.sess.Timing.DurationS > 0 {
		maxTicks = int(r.sess.Timing.DurationS / r.sess.Control.DtWBC)
	}

	r.log.Info("Starting control: session=%s name=%s mode=%s hardware=%s period=%v duration=%.2fs",
		r.ctrl.Session(), r.sess.Meta.Name, r.sess.Control.Mode, r.sess.Hardware.Kind, period, r.sess.Timing.DurationS)

	r.ctrl.Prime()
	r.snapshot()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var ticks int
	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; sending safe command")
			r.sendSafe()
			r.summary()
			return ctx.Err()

		case <-ticker.C:
			if maxTicks > 0 && ticks >= maxTicks {
				r.sendSafe()
				r.summary()
				return nil
			}
			if r.can != nil && r.can.RxAge() > 500*time.Millisecond && ticks%1000 == 0 {
				r.log.Warn("No sensor feedback for %v", r.can.RxAge())
			}

			sample, err := r.source.ReadSample(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				return fmt.Errorf("read sensors: %w", err)
			}
			cmd := r.ctrl.Step(sample, r.input.Joystick())
			r.snapshot()
			if err := r.sink.SendCommand(ctx, cmd); err != nil {
				if ctx.Err() != nil {
					continue
				}
				r.log.Critical("Transmit failed at tick %d: %v", r.ctrl.Tick()-1, err)
				return err
			}
			ticks++
		}
	}
}

func (r *Runner) snapshot() {
	d := r.ctrl.Diagnostics()
	r.diagMu.Lock()
	r.diag = d
	r.diagMu.Unlock()
}

// sendSafe uses a fresh context: the run context is already done on
// shutdown.
func (r *Runner) sendSafe() {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := r.sink.SendCommand(ctx, r.ctrl.SafeCommand()); err != nil {
		r.log.Error("safe command on shutdown failed: %v", err)
	}
}

func (r *Runner) summary() {
	d := r.Diagnostics()
	r.log.Info("Completed control. session=%s ticks=%d overruns=%d worst=%v mpc_solves=%d mpc_failures=%d faulted=%v code=%s",
		d.Session, d.Tick, d.Overruns, d.WorstTick, d.MPC.Solves, d.MPC.Failures, d.Security.Faulted, d.Security.Code)
}
