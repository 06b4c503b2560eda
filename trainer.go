package anyppo

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// A Trainer runs complete optimization steps, keeping the
// feedback loop in order: compute the loss and gradients,
// apply them, then adapt the KL coefficient with the KL
// measured on the same batch and advance the global step.
type Trainer struct {
	Objective *Objective
	Model     Model

	// Transformer post-processes gradients before they
	// are applied, e.g. an anysgd.Adam.
	//
	// If nil, plain gradient descent is used.
	Transformer anysgd.Transformer
}

// Step performs one optimization pass over the batch and
// returns the diagnostics from its loss evaluation.
func (t *Trainer) Step(batch *Batch) (*Stats, error) {
	grad, stats, err := t.Objective.Run(t.Model, batch)
	if err != nil {
		return nil, essentials.AddCtx("train step", err)
	}
	t.apply(grad)

	// Strictly after the update, strictly before the next
	// loss evaluation.
	t.Objective.UpdateKL(stats.KL)
	t.Objective.SetGlobalStep(t.Objective.GlobalStep() + batch.NumValid())

	return stats, nil
}

func (t *Trainer) apply(grad anydiff.Grad) {
	if len(grad) == 0 {
		return
	}
	if t.Transformer != nil {
		grad = t.Transformer.Transform(grad)
	}
	c := creatorFromGrad(grad)
	// The loss is minimized, so descend.
	grad.Scale(c.MakeNumeric(-t.Objective.LR()))
	grad.AddToVars()
}

func creatorFromGrad(grad anydiff.Grad) anyvec.Creator {
	for _, vec := range grad {
		return vec.Creator()
	}
	panic("empty gradient")
}
