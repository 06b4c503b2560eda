package anyppo

import (
	"math"
	"testing"
)

func TestKLControllerTransitions(t *testing.T) {
	cases := []struct {
		meanKL   float64
		expected float64
	}{
		{0.03, 0.3},  // too divergent: coeff goes up
		{0.003, 0.1}, // too conservative: coeff goes down
		{0.01, 0.2},  // inside the band: unchanged
		{0.02, 0.2},  // exactly 2x target: unchanged
		{0.005, 0.2}, // exactly half target: unchanged
	}
	for _, c := range cases {
		ctrl := NewKLController(0.2, 0.01)
		if actual := ctrl.Update(c.meanKL); math.Abs(actual-c.expected) > 1e-9 {
			t.Errorf("meanKL %f: expected coeff %f but got %f",
				c.meanKL, c.expected, actual)
		}
	}
}

func TestKLControllerFloor(t *testing.T) {
	ctrl := NewKLController(1e-8, 0.01)
	if actual := ctrl.Update(0); actual != 1e-8 {
		t.Errorf("expected floor 1e-8 but got %g", actual)
	}
	if ctrl.Value() <= 0 {
		t.Error("coefficient degenerated to zero")
	}
}

func TestKLControllerRunsIndefinitely(t *testing.T) {
	ctrl := NewKLController(0.2, 0.01)
	for i := 0; i < 1000; i++ {
		ctrl.Update(0)
	}
	if ctrl.Value() != 1e-8 {
		t.Errorf("expected floor 1e-8 but got %g", ctrl.Value())
	}
	// Recovery after a long run of relaxations.
	ctrl.Update(0.05)
	if math.Abs(ctrl.Value()-1.5e-8) > 1e-18 {
		t.Errorf("expected 1.5e-8 but got %g", ctrl.Value())
	}
}
