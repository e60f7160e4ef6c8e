package control

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"legged-ctrl-core/utils"
)

// stepClock advances by the queued durations, one per call.
type stepClock struct {
	t     time.Time
	steps []time.Duration
}

func (c *stepClock) now() time.Time {
	if len(c.steps) > 0 {
		c.t = c.t.Add(c.steps[0])
		c.steps = c.steps[1:]
	}
	return c.t
}

func runTick(m *TimingMonitor, k int) bool {
	m.Begin()
	m.EndEstimation()
	m.EndPlanning()
	m.EndMPC()
	m.EndWBC()
	return m.End(k)
}

func TestTimingMonitorStagesAndOverrun(t *testing.T) {
	var buf bytes.Buffer
	m := NewTimingMonitor(time.Millisecond, utils.NewLogger(&buf, utils.INFO))
	clock := &stepClock{t: time.Unix(0, 0)}
	m.now = clock.now

	us := time.Microsecond
	// Begin, four stages, End.
	clock.steps = []time.Duration{0, 100 * us, 200 * us, 300 * us, 100 * us, 0}
	if runTick(m, 1) {
		t.Fatal("700us tick reported as overrun")
	}
	want := TickTiming{Estimation: 100 * us, Planning: 200 * us, MPC: 300 * us, WBC: 100 * us, Total: 700 * us}
	if m.Last() != want {
		t.Fatalf("last = %+v, want %+v", m.Last(), want)
	}

	clock.steps = []time.Duration{0, 100 * us, 200 * us, 1500 * us, 100 * us, 0}
	if !runTick(m, 2) {
		t.Fatal("1.9ms tick not reported as overrun")
	}
	if m.Overruns() != 1 || m.Worst() != 1900*us {
		t.Fatalf("overruns=%d worst=%v", m.Overruns(), m.Worst())
	}
	if !strings.Contains(buf.String(), "tick 2 overran") {
		t.Fatalf("missing overrun warning: %q", buf.String())
	}

	clock.steps = []time.Duration{0, 0, 0, 0, 0, 0}
	runTick(m, 3)
	if m.Overruns() != 1 || m.Worst() != 1900*us {
		t.Fatalf("fast tick changed counters: overruns=%d worst=%v", m.Overruns(), m.Worst())
	}
}
