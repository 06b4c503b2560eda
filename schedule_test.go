package anyppo

import (
	"math"
	"testing"
)

func TestScheduleInterpolation(t *testing.T) {
	sched, err := NewSchedule([]Breakpoint{{0, 1.0}, {100, 0.0}})
	if err != nil {
		t.Fatal(err)
	}
	cases := map[int]float64{
		-10: 1.0,
		0:   1.0,
		50:  0.5,
		75:  0.25,
		100: 0.0,
		200: 0.0,
	}
	for step, expected := range cases {
		if actual := sched.Value(step); math.Abs(actual-expected) > 1e-9 {
			t.Errorf("step %d: expected %f but got %f", step, expected, actual)
		}
	}
}

func TestScheduleMultiSegment(t *testing.T) {
	sched, err := NewSchedule([]Breakpoint{{0, 0.0}, {10, 1.0}, {30, 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	cases := map[int]float64{
		5:  0.5,
		10: 1.0,
		20: 0.75,
		40: 0.5,
	}
	for step, expected := range cases {
		if actual := sched.Value(step); math.Abs(actual-expected) > 1e-9 {
			t.Errorf("step %d: expected %f but got %f", step, expected, actual)
		}
	}
}

func TestScheduleConst(t *testing.T) {
	sched := ConstSchedule(0.3)
	for _, step := range []int{-5, 0, 1000} {
		if actual := sched.Value(step); actual != 0.3 {
			t.Errorf("step %d: expected 0.3 but got %f", step, actual)
		}
	}
}

func TestScheduleErrors(t *testing.T) {
	if _, err := NewSchedule(nil); err == nil {
		t.Error("expected error for empty breakpoints")
	}
	if _, err := NewSchedule([]Breakpoint{{10, 1}, {5, 0}}); err == nil {
		t.Error("expected error for descending steps")
	}
	if _, err := NewSchedule([]Breakpoint{{10, 1}, {10, 0}}); err == nil {
		t.Error("expected error for duplicate steps")
	}
}
