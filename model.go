package anyppo

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyrl"
)

// An ActionSpace provides the distribution capabilities
// needed by the objective: log-likelihoods of actions,
// entropies, and KL divergences between two parameter
// settings of the same family.
//
// The KL capability is only invoked while the KL penalty
// is live.
type ActionSpace interface {
	anyrl.LogProber
	anyrl.Entropyer
	anyrl.KLer
}

// A Model maps a batch of observations to action
// distribution parameters and value estimates.
//
// The values result must contain one component per
// timestep. It is always computed, even when the critic
// is unused, so that callers can collect value predictions
// alongside actions.
type Model interface {
	Apply(obs anydiff.Res, n int) (params, values anydiff.Res)
	Parameters() []*anydiff.Var
}

// A NetModel is a Model backed by anynet layers.
//
// Observations are fed through Base, whose output is fed
// through Actor (producing action parameters) and Critic
// (producing one value per timestep).
type NetModel struct {
	// Base is shared by the actor and the critic.
	// If nil, the identity mapping is used.
	Base anynet.Layer

	Actor  anynet.Layer
	Critic anynet.Layer
}

// Apply applies the model to a batch of observations.
func (n *NetModel) Apply(obs anydiff.Res, nSteps int) (params, values anydiff.Res) {
	params = n.Actor.Apply(n.applyBase(obs, nSteps), nSteps)
	values = n.Critic.Apply(n.applyBase(obs, nSteps), nSteps)
	return
}

// Parameters returns the parameters of all the layers via
// anynet.AllParameters.
func (n *NetModel) Parameters() []*anydiff.Var {
	layers := []interface{}{n.Actor, n.Critic}
	if n.Base != nil {
		layers = append(layers, n.Base)
	}
	return anynet.AllParameters(layers...)
}

func (n *NetModel) applyBase(obs anydiff.Res, nSteps int) anydiff.Res {
	if n.Base == nil {
		return obs
	}
	return n.Base.Apply(obs, nSteps)
}
