// Package anyppo computes the Proximal Policy Optimization
// training objective for a batch of collected experience:
// the clipped surrogate loss, a clipped value-function loss,
// an entropy bonus, and an adaptive KL-divergence penalty.
//
// See the PPO paper: https://arxiv.org/abs/1707.06347.
package anyppo

import (
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyrl/anypg"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Config holds the constants for an Objective.
//
// All fields are read once by New.
type Config struct {
	// ActionSpace evaluates log-likelihoods, entropies,
	// and KL divergences for action parameters.
	ActionSpace ActionSpace

	// ClipParam is the radius of the probability-ratio
	// clipping region. It must be positive.
	ClipParam float64

	// VFClipParam is the upper bound on each timestep's
	// squared value-function error. It must be positive.
	// Use math.Inf(1) to disable value clipping.
	VFClipParam float64

	// VFLossCoeff is the weight of the value loss in the
	// total loss.
	VFLossCoeff float64

	// UseCritic indicates whether the value loss should
	// influence gradients. When false, the value loss is
	// forced to zero, but value predictions are still
	// computed for diagnostics.
	UseCritic bool

	// KLCoeff is the initial KL penalty coefficient.
	// A value of 0 disables the KL penalty entirely; the
	// divergence is then never computed.
	KLCoeff float64

	// KLTarget is the desired mean KL divergence per
	// update, used to adapt the penalty coefficient.
	KLTarget float64

	// EntropyCoeff is the entropy bonus coefficient as a
	// function of the global step.
	EntropyCoeff *Schedule

	// LR is the learning rate as a function of the global
	// step. It is not used by the loss itself; it is
	// reported to callers applying the gradients.
	LR *Schedule

	// GradClip bounds the global L2 norm of the gradients.
	// A value of 0 disables gradient clipping.
	GradClip float64
}

// DefaultConfig returns a Config with commonly used
// constants. The caller must still set ActionSpace.
func DefaultConfig() Config {
	return Config{
		ClipParam:    anypg.DefaultPPOEpsilon,
		VFClipParam:  10,
		VFLossCoeff:  1,
		UseCritic:    true,
		KLCoeff:      0.2,
		KLTarget:     anypg.DefaultTargetKL,
		EntropyCoeff: ConstSchedule(0),
		LR:           ConstSchedule(5e-5),
	}
}

// An Objective computes PPO losses and gradients for a
// single policy.
//
// An Objective owns the policy's adaptive KL coefficient
// and its global step counter. It is not safe for
// concurrent use; training is strictly sequential.
type Objective struct {
	cfg  Config
	kl   *KLController
	step int
	last *Stats
}

// New creates an Objective from a configuration.
//
// It fails if the configuration is invalid, e.g. if a clip
// radius is not positive.
func New(cfg Config) (*Objective, error) {
	obj, err := newObjective(cfg)
	if err != nil {
		return nil, essentials.AddCtx("new objective", err)
	}
	return obj, nil
}

func newObjective(cfg Config) (*Objective, error) {
	if cfg.ActionSpace == nil {
		return nil, fmt.Errorf("missing action space")
	}
	if cfg.ClipParam <= 0 {
		return nil, fmt.Errorf("clip param must be positive (got %v)", cfg.ClipParam)
	}
	if cfg.VFClipParam <= 0 {
		return nil, fmt.Errorf("vf clip param must be positive (got %v)",
			cfg.VFClipParam)
	}
	if cfg.KLCoeff < 0 {
		return nil, fmt.Errorf("kl coeff must be non-negative (got %v)", cfg.KLCoeff)
	}
	if cfg.EntropyCoeff == nil {
		cfg.EntropyCoeff = ConstSchedule(0)
	}
	if cfg.LR == nil {
		cfg.LR = ConstSchedule(0)
	}
	res := &Objective{cfg: cfg}
	if cfg.KLCoeff > 0 {
		res.kl = NewKLController(cfg.KLCoeff, cfg.KLTarget)
	}
	return res, nil
}

// Run computes the total loss for the batch and the
// post-processed gradients with respect to the model's
// parameters.
//
// The returned Stats describe this loss evaluation.
// Run does not update the KL coefficient; call UpdateKL
// with the measured KL after the gradients have been
// applied and before the next Run.
func (o *Objective) Run(model Model, batch *Batch) (anydiff.Grad, *Stats, error) {
	grad, stats, err := o.run(model, batch)
	if err != nil {
		return nil, nil, essentials.AddCtx("run objective", err)
	}
	return grad, stats, nil
}

func (o *Objective) run(model Model, batch *Batch) (anydiff.Grad, *Stats, error) {
	if err := batch.check(); err != nil {
		return nil, nil, err
	}
	n := batch.NumSteps()
	c := batch.Advantages.Creator()

	reducer, err := newMaskedMean(c, batch.SeqLens, n)
	if err != nil {
		return nil, nil, err
	}

	params, values := model.Apply(anydiff.NewConst(batch.Observations), n)
	if values.Output().Len() != n {
		return nil, nil, fmt.Errorf("model produced %d values for %d timesteps",
			values.Output().Len(), n)
	}

	advs := anydiff.NewConst(batch.Advantages)
	ratios := anydiff.Exp(anydiff.Sub(
		o.cfg.ActionSpace.LogProb(params, batch.Actions, n),
		anydiff.NewConst(batch.ActionLogProbs),
	))
	surrogate := anydiff.Pool(ratios, func(ratios anydiff.Res) anydiff.Res {
		clipped := anydiff.ClipRange(ratios,
			c.MakeNumeric(1-o.cfg.ClipParam),
			c.MakeNumeric(1+o.cfg.ClipParam))
		return anydiff.ElemMin(
			anydiff.Mul(ratios, advs),
			anydiff.Mul(clipped, advs),
		)
	})
	policyLoss := anydiff.Scale(reducer.Mean(surrogate), c.MakeNumeric(-1.0))
	total := policyLoss

	var vfLoss anydiff.Res
	if o.cfg.UseCritic {
		sqErr := anydiff.Square(anydiff.Sub(values,
			anydiff.NewConst(batch.ValueTargets)))
		clippedErr := anydiff.ClipRange(sqErr, c.MakeNumeric(0.0),
			c.MakeNumeric(o.cfg.VFClipParam))
		vfLoss = reducer.Mean(clippedErr)
		total = anydiff.Add(total,
			anydiff.Scale(vfLoss, c.MakeNumeric(o.cfg.VFLossCoeff)))
	}

	entropy := reducer.Mean(o.cfg.ActionSpace.Entropy(params, n))
	entropyCoeff := o.cfg.EntropyCoeff.Value(o.step)
	total = anydiff.Add(total, anydiff.Scale(entropy, c.MakeNumeric(-entropyCoeff)))

	// Only compute the divergence if the penalty is live.
	var meanKL anydiff.Res
	klCoeff := o.KLCoeff()
	if klCoeff > 0 {
		oldParams := anydiff.NewConst(batch.ActionParams)
		meanKL = reducer.Mean(o.cfg.ActionSpace.KL(oldParams, params, n))
		total = anydiff.Add(total, anydiff.Scale(meanKL, c.MakeNumeric(klCoeff)))
	}

	grad := anydiff.NewGrad(model.Parameters()...)
	total.Propagate(anyvec.Ones(c, 1), grad)
	postProcess(grad, c, o.cfg.GradClip)

	stats := &Stats{
		TotalLoss:      scalarValue(total),
		PolicyLoss:     scalarValue(policyLoss),
		VFLoss:         optScalarValue(vfLoss),
		VFExplainedVar: explainedVariance(batch.ValueTargets, values.Output(), reducer.valid),
		KL:             optScalarValue(meanKL),
		Entropy:        scalarValue(entropy),
		KLCoeff:        klCoeff,
		LR:             o.cfg.LR.Value(o.step),
		EntropyCoeff:   entropyCoeff,
	}
	o.last = stats

	return grad, stats, nil
}

// UpdateKL adapts the KL penalty coefficient using the
// mean KL divergence measured by the previous Run.
//
// It must be called after that Run's gradients have been
// applied and before the next Run. It returns the new
// coefficient.
//
// If the KL penalty is disabled, UpdateKL has no effect
// and returns 0.
func (o *Objective) UpdateKL(meanKL float64) float64 {
	if o.kl == nil {
		return 0
	}
	return o.kl.Update(meanKL)
}

// KLCoeff returns the current KL penalty coefficient, or 0
// if the penalty is disabled.
func (o *Objective) KLCoeff() float64 {
	if o.kl == nil {
		return 0
	}
	return o.kl.Value()
}

// GlobalStep returns the current global step, which feeds
// the learning rate and entropy coefficient schedules.
func (o *Objective) GlobalStep() int {
	return o.step
}

// SetGlobalStep sets the global step.
//
// The step is owned by the training loop; the schedules
// never advance it themselves.
func (o *Objective) SetGlobalStep(step int) {
	o.step = step
}

// LR returns the learning rate at the current global step.
func (o *Objective) LR() float64 {
	return o.cfg.LR.Value(o.step)
}

// EntropyCoeff returns the entropy bonus coefficient at
// the current global step.
func (o *Objective) EntropyCoeff() float64 {
	return o.cfg.EntropyCoeff.Value(o.step)
}

// Stats returns the diagnostics from the most recent Run,
// or nil if Run has not been called.
func (o *Objective) Stats() *Stats {
	return o.last
}

func scalarValue(r anydiff.Res) float64 {
	return numToFloat(anyvec.Sum(r.Output()))
}

func optScalarValue(r anydiff.Res) float64 {
	if r == nil {
		return 0
	}
	return scalarValue(r)
}

// explainedVariance measures the fraction of the target
// variance captured by the predictions, clamped below at
// -1. Padded timesteps are excluded.
func explainedVariance(targets, preds anyvec.Vector, valid []bool) float64 {
	t := vecToFloats(targets)
	p := vecToFloats(preds)

	var sumT, sumD float64
	var count int
	for i := range t {
		if valid != nil && !valid[i] {
			continue
		}
		sumT += t[i]
		sumD += t[i] - p[i]
		count++
	}
	if count == 0 {
		return 0
	}
	meanT := sumT / float64(count)
	meanD := sumD / float64(count)

	var varT, varD float64
	for i := range t {
		if valid != nil && !valid[i] {
			continue
		}
		varT += (t[i] - meanT) * (t[i] - meanT)
		varD += (t[i] - p[i] - meanD) * (t[i] - p[i] - meanD)
	}
	if varT == 0 {
		return 0
	}
	return math.Max(-1, 1-varD/varT)
}
