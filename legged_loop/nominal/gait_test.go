package nominal

import "testing"

func TestGaitStaticUntilRequested(t *testing.T) {
	g := NewGait(16, 4)
	for k := 0; k < 100; k += 20 {
		g.Advance(k, 20, 0)
	}
	if !g.IsStatic() || !g.CurrentPattern().AllInContact() {
		t.Fatal("default gait should stand")
	}
	if g.IsNewPhase() {
		t.Error("standing gait has no phase boundaries after tick 0")
	}

	g.Advance(100, 20, GaitTrot)
	if g.Code() != GaitTrot || g.IsStatic() || !g.IsNewPhase() {
		t.Fatalf("trot not engaged from standing: code=%d static=%v", g.Code(), g.IsStatic())
	}
}

func TestGaitTrotPhases(t *testing.T) {
	g := NewGait(16, 4)
	g.Advance(0, 20, GaitTrot)

	boundaries := 0
	for i := 1; i <= 32; i++ {
		g.Advance(20*i, 20, 0)
		if g.IsNewPhase() {
			boundaries++
		}
		row := g.CurrentPattern().Row(0)
		if row[0] != row[3] || row[1] != row[2] || row[0] == row[1] {
			t.Fatalf("advance %d: row %v is not a trot", i, row)
		}
	}
	if boundaries != 4 {
		t.Fatalf("phase boundaries over two cycles = %d, want 4", boundaries)
	}
}

func TestGaitIgnoresFineTicks(t *testing.T) {
	g := NewGait(16, 4)
	g.Advance(0, 20, GaitTrot)
	before := g.CurrentPattern()
	g.Advance(7, 20, 0)
	if !g.CurrentPattern().Equal(before) || g.IsNewPhase() {
		t.Fatal("pattern changed on a fine tick")
	}
}
