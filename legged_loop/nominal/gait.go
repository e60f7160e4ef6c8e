package nominal

import (
	"legged-ctrl-core/legged_loop/control"
)

// Joystick gait codes. 0 keeps the current gait.
const (
	GaitPacing   = 1
	GaitBounding = 2
	GaitTrot     = 3
	GaitStatic   = 4
)

// Gait is a periodic contact schedule that rolls one row per coarse tick.
// Requested gait changes take effect at the next phase boundary, or on the
// next coarse tick when standing.
type Gait struct {
	rows     int
	limbs    int
	current  int
	pending  int
	pattern  [][]bool
	newPhase bool
}

// NewGait starts in the static gait with a horizon of rows coarse steps.
func NewGait(rows, limbs int) *Gait {
	g := &Gait{rows: rows, limbs: limbs, current: GaitStatic}
	g.pattern = g.build(GaitStatic)
	return g
}

// build returns one gait cycle over the horizon: two half-cycles whose
// stance sets are given by the gait type.
func (g *Gait) build(code int) [][]bool {
	var first, second []bool
	switch code {
	case GaitTrot:
		first, second = diagonal(g.limbs, true), diagonal(g.limbs, false)
	case GaitPacing:
		first, second = lateral(g.limbs, true), lateral(g.limbs, false)
	case GaitBounding:
		first, second = frontBack(g.limbs, true), frontBack(g.limbs, false)
	default:
		first, second = allStance(g.limbs), allStance(g.limbs)
	}
	out := make([][]bool, g.rows)
	for i := range out {
		if i < (g.rows+1)/2 {
			out[i] = append([]bool(nil), first...)
		} else {
			out[i] = append([]bool(nil), second...)
		}
	}
	return out
}

func (g *Gait) Advance(tick, ratio, joystickCode int) {
	if joystickCode != 0 && joystickCode != g.current {
		g.pending = joystickCode
	}
	if ratio <= 0 || tick%ratio != 0 {
		g.newPhase = false
		return
	}

	before := append([]bool(nil), g.pattern[0]...)
	head := g.pattern[0]
	copy(g.pattern, g.pattern[1:])
	g.pattern[len(g.pattern)-1] = head

	switched := false
	if g.pending != 0 && (g.current == GaitStatic || !equalRow(before, g.pattern[0])) {
		g.current = g.pending
		g.pending = 0
		g.pattern = g.build(g.current)
		switched = true
	}
	g.newPhase = tick == 0 || switched || !equalRow(before, g.pattern[0])
}

func (g *Gait) CurrentPattern() control.GaitPattern { return control.NewGaitPattern(g.pattern) }

func (g *Gait) IsNewPhase() bool { return g.newPhase }

// IsStatic reports whether every limb is in stance over the whole horizon.
func (g *Gait) IsStatic() bool {
	for _, r := range g.pattern {
		for _, c := range r {
			if !c {
				return false
			}
		}
	}
	return true
}

// Code is the active joystick gait code.
func (g *Gait) Code() int { return g.current }

// Limb order: front-left, front-right, hind-left, hind-right.
func diagonal(limbs int, fl bool) []bool {
	r := make([]bool, limbs)
	for i := range r {
		r[i] = (i == 0 || i == 3) == fl
	}
	return r
}

func lateral(limbs int, left bool) []bool {
	r := make([]bool, limbs)
	for i := range r {
		r[i] = (i%2 == 0) == left
	}
	return r
}

func frontBack(limbs int, front bool) []bool {
	r := make([]bool, limbs)
	for i := range r {
		r[i] = (i < limbs/2) == front
	}
	return r
}

func allStance(limbs int) []bool {
	r := make([]bool, limbs)
	for i := range r {
		r[i] = true
	}
	return r
}

func equalRow(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
