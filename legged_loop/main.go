package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"legged-ctrl-core/utils"
)

func main() {
	app := cli.NewApp()
	app.Name = "leggedctl"
	app.Usage = "multi-rate locomotion controller for a 12-joint quadruped"
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "run a session until its duration elapses or SIGINT",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "session, s",
					Value: "legged_loop/sessions/stand_fake.json",
					Usage: "session JSON file",
				},
				cli.StringFlag{
					Name:  "log",
					Value: "info",
					Usage: "trace|debug|info|warn|error|critical",
				},
				cli.StringFlag{
					Name:  "log-file",
					Usage: "append log lines to this file (also echoed to stdout)",
				},
				cli.StringFlag{
					Name:  "iface",
					Usage: "SocketCAN interface, overrides the session",
				},
				cli.StringFlag{
					Name:  "http",
					Usage: "operator endpoint address, overrides the session",
				},
				cli.StringFlag{
					Name:  "hardware",
					Usage: "can|fake, overrides the session",
				},
			},
			Action: runCommand,
		},
		{
			Name:      "validate",
			Usage:     "parse and validate a session file",
			ArgsUsage: "SESSION",
			Action:    validateCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func runCommand(c *cli.Context) error {
	level := utils.ParseLevel(c.String("log"))
	var log *utils.Logger
	if path := c.String("log-file"); path != "" {
		l, err := utils.NewFileLogger(path, level, true)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		log = l
	} else {
		log = utils.NewLogger(os.Stdout, level)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, RunnerConfig{
		SessionPath: c.String("session"),
		Interface:   c.String("iface"),
		HTTPAddr:    c.String("http"),
		Hardware:    c.String("hardware"),
	}, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		return err
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		return err
	}
	return nil
}

func validateCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("missing SESSION argument")
	}
	sess, err := LoadSession(path)
	if err != nil {
		return err
	}
	ratio, err := sess.Control.Ratio()
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (mode=%s hardware=%s dt_wbc=%gs dt_mpc=%gs ratio=%d)\n",
		sess.Meta.Name, sess.Control.Mode, sess.Hardware.Kind, sess.Control.DtWBC, sess.Control.DtMPC, ratio)
	return nil
}
