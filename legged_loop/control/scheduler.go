package control

import (
	"fmt"
	"math"
)

// RatioFromPeriods returns coarse/fine as an integer. A fractional ratio
// is a configuration error.
func RatioFromPeriods(coarse, fine float64) (int, error) {
	if coarse <= 0 || fine <= 0 {
		return 0, fmt.Errorf("%w: periods must be positive (coarse=%g fine=%g)", ErrInvalidConfig, coarse, fine)
	}
	r := coarse / fine
	n := math.Round(r)
	if n < 1 || math.Abs(r-n) > 1e-9*math.Max(1, r) {
		return 0, fmt.Errorf("%w: %g / %g = %g", ErrFractionalRatio, coarse, fine, r)
	}
	return int(n), nil
}

// Decision says which coarse-rate actions fire on a tick.
type Decision struct {
	RunCoarseGait bool
	RunPlanning   bool
	RunMPC        bool
}

// Scheduler maps the fine tick counter onto coarse-rate actions. The ratio
// is fixed for the session.
type Scheduler struct {
	ratio int
}

func NewScheduler(ratio int) (*Scheduler, error) {
	if ratio < 1 {
		return nil, fmt.Errorf("%w: ratio %d", ErrInvalidConfig, ratio)
	}
	return &Scheduler{ratio: ratio}, nil
}

func (s *Scheduler) Ratio() int { return s.ratio }

// IsCoarse reports k mod R == 0.
func (s *Scheduler) IsCoarse(k int) bool {
	return k%s.ratio == 0
}

func (s *Scheduler) Decide(k int) Decision {
	c := s.IsCoarse(k)
	return Decision{RunCoarseGait: c, RunPlanning: c, RunMPC: c}
}

// IsNewContactPhase is edge-triggered: a coarse tick on which the gait
// reports a phase boundary.
func (s *Scheduler) IsNewContactPhase(k int, gaitReportsBoundary bool) bool {
	return s.IsCoarse(k) && gaitReportsBoundary
}

// TicksUntilCoarse counts fine ticks up to the next coarse boundary
// (R on a coarse tick itself).
func (s *Scheduler) TicksUntilCoarse(k int) int {
	return s.ratio - k%s.ratio
}

// Refresh is true on every coarse tick except the first; footstep planners
// use it to roll their horizon.
func (s *Scheduler) Refresh(k int) bool {
	return s.IsCoarse(k) && k != 0
}
