package anyppo

import (
	"fmt"

	"github.com/unixpickle/anyvec"
)

// A Batch is one minibatch of collected experience,
// flattened along the time dimension.
//
// Every per-timestep vector shares the same leading
// dimension: the number of advantage components. Vectors
// with more than one component per timestep (observations,
// actions, action parameters) must have lengths divisible
// by that dimension.
//
// For recurrent models, the flattened dimension holds
// len(SeqLens) episode slices, each zero-padded to the
// same length. Padded timesteps never influence losses or
// diagnostics.
type Batch struct {
	// Observations as seen by the policy.
	Observations anyvec.Vector

	// Actions that were taken.
	Actions anyvec.Vector

	// ActionLogProbs are the log-likelihoods of the taken
	// actions under the policy that collected the batch.
	ActionLogProbs anyvec.Vector

	// Advantages are externally estimated, e.g. with GAE.
	Advantages anyvec.Vector

	// ValueTargets are the value-function regression
	// targets.
	ValueTargets anyvec.Vector

	// ActionParams are the action distribution parameters
	// produced by the policy that collected the batch.
	ActionParams anyvec.Vector

	// VFPreds are the value predictions made at collection
	// time. They are optional and used only for
	// diagnostics; the loss recomputes values from the
	// current model.
	VFPreds anyvec.Vector

	// SeqLens are the unpadded lengths of the episode
	// slices in the batch, or nil if the batch contains no
	// padding.
	SeqLens []int
}

// NumSteps returns the flattened time dimension, including
// any padded timesteps.
func (b *Batch) NumSteps() int {
	return b.Advantages.Len()
}

// NumValid returns the number of unpadded timesteps.
func (b *Batch) NumValid() int {
	if b.SeqLens == nil {
		return b.NumSteps()
	}
	var total int
	for _, l := range b.SeqLens {
		total += l
	}
	return total
}

func (b *Batch) check() error {
	for name, vec := range map[string]anyvec.Vector{
		"observations":     b.Observations,
		"actions":          b.Actions,
		"action log probs": b.ActionLogProbs,
		"advantages":       b.Advantages,
		"value targets":    b.ValueTargets,
		"action params":    b.ActionParams,
	} {
		if vec == nil {
			return fmt.Errorf("missing %s", name)
		}
	}
	n := b.NumSteps()
	if n == 0 {
		return fmt.Errorf("empty batch")
	}
	for name, vec := range map[string]anyvec.Vector{
		"action log probs": b.ActionLogProbs,
		"value targets":    b.ValueTargets,
	} {
		if vec.Len() != n {
			return fmt.Errorf("%s size %d (expected %d)", name, vec.Len(), n)
		}
	}
	if b.VFPreds != nil && b.VFPreds.Len() != n {
		return fmt.Errorf("vf preds size %d (expected %d)", b.VFPreds.Len(), n)
	}
	for name, vec := range map[string]anyvec.Vector{
		"observations":  b.Observations,
		"actions":       b.Actions,
		"action params": b.ActionParams,
	} {
		if vec.Len() == 0 || vec.Len()%n != 0 {
			return fmt.Errorf("%s size %d not divisible by %d timesteps",
				name, vec.Len(), n)
		}
	}
	return nil
}
