package anyppo

// Stats are diagnostics cached by the most recent loss
// evaluation. They are a read-only projection; reporting
// them never mutates the policy.
type Stats struct {
	// TotalLoss is the scalar being minimized.
	TotalLoss float64

	// PolicyLoss is the negated mean clipped surrogate.
	PolicyLoss float64

	// VFLoss is the mean clipped value error before
	// weighting, or 0 when the critic is unused.
	VFLoss float64

	// VFExplainedVar is the fraction of value-target
	// variance captured by the value predictions. It is a
	// diagnostic only and never part of the loss.
	VFExplainedVar float64

	// KL is the mean KL divergence from the old policy to
	// the current one, or 0 when the penalty is disabled.
	KL float64

	// Entropy is the mean entropy of the current policy.
	Entropy float64

	// KLCoeff, LR, and EntropyCoeff are the coefficient
	// values that were in effect for the evaluation.
	KLCoeff      float64
	LR           float64
	EntropyCoeff float64
}

// Map returns the stats as named scalars, suitable for
// aggregation or logging.
func (s *Stats) Map() map[string]float64 {
	return map[string]float64{
		"cur_kl_coeff":     s.KLCoeff,
		"cur_lr":           s.LR,
		"total_loss":       s.TotalLoss,
		"policy_loss":      s.PolicyLoss,
		"vf_loss":          s.VFLoss,
		"vf_explained_var": s.VFExplainedVar,
		"kl":               s.KL,
		"entropy":          s.Entropy,
		"entropy_coeff":    s.EntropyCoeff,
	}
}
