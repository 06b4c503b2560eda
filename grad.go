package anyppo

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// postProcess clips the gradients to a global L2 norm
// bound and then zeroes any NaN entries.
//
// An extreme loss can make the global norm infinite, in
// which case rescaling turns every entry into NaN or zero.
// Zeroing the NaNs leaves the affected parameters
// untouched for the step instead of corrupting them.
//
// A maxNorm of 0 disables post-processing entirely.
func postProcess(grad anydiff.Grad, c anyvec.Creator, maxNorm float64) {
	if maxNorm <= 0 || len(grad) == 0 {
		return
	}
	norm := globalNorm(grad)
	if norm > maxNorm || math.IsNaN(norm) {
		grad.Scale(c.MakeNumeric(maxNorm / norm))
	}
	for _, vec := range grad {
		zeroNaNs(vec)
	}
}

// globalNorm computes the L2 norm of all the gradient
// entries pooled together.
func globalNorm(grad anydiff.Grad) float64 {
	var sum float64
	for _, vec := range grad {
		sum += numToFloat(vec.Dot(vec))
	}
	return math.Sqrt(sum)
}

func zeroNaNs(vec anyvec.Vector) {
	switch data := vec.Data().(type) {
	case []float64:
		var dirty bool
		for i, x := range data {
			if math.IsNaN(x) {
				data[i] = 0
				dirty = true
			}
		}
		if dirty {
			vec.SetData(data)
		}
	case []float32:
		var dirty bool
		for i, x := range data {
			if math.IsNaN(float64(x)) {
				data[i] = 0
				dirty = true
			}
		}
		if dirty {
			vec.SetData(data)
		}
	default:
		panic("unsupported numeric type")
	}
}
