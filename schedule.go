package anyppo

import (
	"fmt"
	"sort"

	"github.com/unixpickle/essentials"
)

// A Breakpoint anchors a Schedule's value at a global
// step.
type Breakpoint struct {
	Step  int
	Value float64
}

// A Schedule is a piecewise-linear function from the
// global step counter to a hyperparameter value.
//
// Queries before the first breakpoint or after the last
// one clamp to the boundary value. Schedules are pure:
// querying never mutates them, and the step counter is
// advanced by the training loop.
type Schedule struct {
	points []Breakpoint
}

// NewSchedule creates a Schedule from breakpoints sorted
// by ascending step.
func NewSchedule(points []Breakpoint) (*Schedule, error) {
	if len(points) == 0 {
		return nil, essentials.AddCtx("new schedule", fmt.Errorf("no breakpoints"))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Step <= points[i-1].Step {
			return nil, essentials.AddCtx("new schedule",
				fmt.Errorf("breakpoint steps not ascending: %d then %d",
					points[i-1].Step, points[i].Step))
		}
	}
	return &Schedule{points: append([]Breakpoint{}, points...)}, nil
}

// ConstSchedule creates a Schedule that always returns the
// same value.
func ConstSchedule(value float64) *Schedule {
	return &Schedule{points: []Breakpoint{{Value: value}}}
}

// Value evaluates the schedule at a global step.
func (s *Schedule) Value(step int) float64 {
	points := s.points
	if step <= points[0].Step {
		return points[0].Value
	}
	if step >= points[len(points)-1].Step {
		return points[len(points)-1].Value
	}
	// Index of the first breakpoint past the step.
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].Step > step
	})
	lo, hi := points[idx-1], points[idx]
	frac := float64(step-lo.Step) / float64(hi.Step-lo.Step)
	return lo.Value + frac*(hi.Value-lo.Value)
}
