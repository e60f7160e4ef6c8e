package control

import (
	"errors"
	"testing"
)

func TestApplyDefaultsFillsGainsAndDiagnostics(t *testing.T) {
	c := Config{KpMain: []float64{3, 3, 3}, KdMain: []float64{0.3, 0.3, 0.3}, DtWBC: 0.001, DtMPC: 0.02}
	c.ApplyDefaults()
	d := DefaultConfig()
	if c.KffMain != d.KffMain {
		t.Errorf("kff_main = %v, want %v", c.KffMain, d.KffMain)
	}
	if c.DiagnosticsEvery != d.DiagnosticsEvery {
		t.Errorf("diagnostics_every = %d, want %d", c.DiagnosticsEvery, d.DiagnosticsEvery)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	off := Config{DiagnosticsEvery: -1, KffMain: 0.5}
	off.ApplyDefaults()
	if off.DiagnosticsEvery != -1 || off.KffMain != 0.5 {
		t.Errorf("explicit values overwritten: diagnostics_every=%d kff_main=%v", off.DiagnosticsEvery, off.KffMain)
	}
}

func TestValidateRejectsNonPositiveFeedForward(t *testing.T) {
	c := DefaultConfig()
	c.KffMain = -1
	if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
