package control

import (
	"time"

	"legged-ctrl-core/utils"
)

// TickTiming holds the stage durations of one fine tick.
type TickTiming struct {
	Estimation time.Duration
	Planning   time.Duration // filters, gait and planners
	MPC        time.Duration
	WBC        time.Duration // foot trajectories, WBC and security
	Total      time.Duration
}

// TimingMonitor measures stages and counts ticks that ran past the fine
// period. An overrun is only reported; the tick is never retried.
type TimingMonitor struct {
	period time.Duration
	now    func() time.Time
	log    *utils.Logger

	start    time.Time
	mark     time.Time
	current  TickTiming
	last     TickTiming
	worst    time.Duration
	overruns int
}

func NewTimingMonitor(period time.Duration, log *utils.Logger) *TimingMonitor {
	return &TimingMonitor{period: period, now: time.Now, log: log}
}

func (m *TimingMonitor) Begin() {
	m.start = m.now()
	m.mark = m.start
	m.current = TickTiming{}
}

// lap returns the time since the previous mark.
func (m *TimingMonitor) lap() time.Duration {
	t := m.now()
	d := t.Sub(m.mark)
	m.mark = t
	return d
}

func (m *TimingMonitor) EndEstimation() { m.current.Estimation = m.lap() }
func (m *TimingMonitor) EndPlanning()   { m.current.Planning = m.lap() }
func (m *TimingMonitor) EndMPC()        { m.current.MPC = m.lap() }
func (m *TimingMonitor) EndWBC()        { m.current.WBC = m.lap() }

// End closes the tick and reports whether it overran.
func (m *TimingMonitor) End(k int) bool {
	m.current.Total = m.now().Sub(m.start)
	m.last = m.current
	if m.current.Total > m.worst {
		m.worst = m.current.Total
	}
	if m.current.Total <= m.period {
		return false
	}
	m.overruns++
	m.log.Warn("tick %d overran: total=%v period=%v (est=%v plan=%v mpc=%v wbc=%v)",
		k, m.current.Total, m.period, m.current.Estimation, m.current.Planning, m.current.MPC, m.current.WBC)
	return true
}

func (m *TimingMonitor) Last() TickTiming     { return m.last }
func (m *TimingMonitor) Overruns() int        { return m.overruns }
func (m *TimingMonitor) Worst() time.Duration { return m.worst }
