package anyppo

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A maskedMean averages per-timestep values over the valid
// timesteps of a padded batch.
//
// Every loss term and diagnostic goes through the same
// reducer, so padded timesteps can never bias a statistic.
type maskedMean struct {
	// mask is a 0/1 vector over the flattened time
	// dimension, or nil when every timestep is valid.
	mask anydiff.Res

	// valid mirrors mask as booleans, or nil.
	valid []bool

	n     int
	count int
}

// newMaskedMean derives the validity mask from the
// sequence lengths.
//
// The batch is laid out as len(seqLens) slices, each
// padded to n/len(seqLens) timesteps. A nil seqLens means
// no padding and the reducer degenerates to the ordinary
// mean.
func newMaskedMean(c anyvec.Creator, seqLens []int, n int) (*maskedMean, error) {
	if seqLens == nil {
		return &maskedMean{n: n, count: n}, nil
	}
	numSeqs := len(seqLens)
	if numSeqs == 0 || n%numSeqs != 0 {
		return nil, fmt.Errorf("%d timesteps cannot hold %d padded sequences",
			n, numSeqs)
	}
	maxLen := n / numSeqs

	valid := make([]bool, n)
	maskData := make([]float64, n)
	var count int
	for i, l := range seqLens {
		if l < 0 || l > maxLen {
			return nil, fmt.Errorf("sequence length %d out of range [0, %d]",
				l, maxLen)
		}
		for t := 0; t < l; t++ {
			valid[i*maxLen+t] = true
			maskData[i*maxLen+t] = 1
		}
		count += l
	}
	if count == 0 {
		return nil, fmt.Errorf("no valid timesteps")
	}
	mask := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(maskData)))
	return &maskedMean{mask: mask, valid: valid, n: n, count: count}, nil
}

// Mean reduces a per-timestep result to its average over
// the valid timesteps.
func (m *maskedMean) Mean(r anydiff.Res) anydiff.Res {
	c := r.Output().Creator()
	if m.mask != nil {
		r = anydiff.Mul(r, m.mask)
	}
	return anydiff.Scale(anydiff.Sum(r), c.MakeNumeric(1/float64(m.count)))
}
