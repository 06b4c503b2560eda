package anyppo

// minKLCoeff keeps a repeatedly relaxed coefficient from
// reaching exactly zero, which would permanently disable
// the KL penalty branch.
const minKLCoeff = 1e-8

// A KLController adapts the KL penalty coefficient so that
// the measured mean KL divergence tracks a fixed target.
//
// It forms a lag-one feedback loop: each update uses the
// divergence measured on the batch that the previous
// coefficient was applied to.
type KLController struct {
	coeff  float64
	target float64
}

// NewKLController creates a controller with an initial
// coefficient and a target divergence.
func NewKLController(coeff, target float64) *KLController {
	return &KLController{coeff: coeff, target: target}
}

// Value returns the current coefficient.
func (k *KLController) Value() float64 {
	return k.coeff
}

// Update adapts the coefficient using the mean KL
// divergence measured after an optimization pass and
// returns the new coefficient.
//
// Divergence more than twice the target raises the
// coefficient by half; divergence under half the target
// halves it. Anything in between leaves it unchanged.
func (k *KLController) Update(meanKL float64) float64 {
	if meanKL > 2*k.target {
		k.coeff *= 1.5
	} else if meanKL < k.target/2 {
		k.coeff *= 0.5
	}
	if k.coeff < minKLCoeff {
		k.coeff = minKLCoeff
	}
	return k.coeff
}
