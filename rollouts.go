package anyppo

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// RolloutBatch flattens a batch of rollouts into a Batch.
//
// The advantages and value targets must already be
// computed, e.g. with an anypg.ActionJudger; no reward
// discounting happens here.
//
// Rollouts of different lengths are zero-padded to the
// longest one and the resulting Batch carries the sequence
// lengths, so padded timesteps are masked out of every
// reduction.
func RolloutBatch(space ActionSpace, r *anyrl.RolloutSet, advantages,
	targets anyrl.Rewards) (*Batch, error) {
	batch, err := rolloutBatch(space, r.Inputs.ReadTape(0, -1),
		r.Actions.ReadTape(0, -1), r.AgentOuts.ReadTape(0, -1), advantages, targets)
	if err != nil {
		return nil, essentials.AddCtx("flatten rollouts", err)
	}
	return batch, nil
}

func rolloutBatch(space ActionSpace, inputs, actions,
	agentOuts <-chan *anyseq.Batch, advantages, targets anyrl.Rewards) (*Batch, error) {
	if space == nil {
		return nil, fmt.Errorf("missing action space")
	}
	if len(advantages) != len(targets) {
		return nil, fmt.Errorf("got %d advantage sequences but %d target sequences",
			len(advantages), len(targets))
	}
	numSeqs := len(advantages)
	if numSeqs == 0 {
		return nil, fmt.Errorf("no rollouts")
	}

	obs := make([][]anyvec.Vector, numSeqs)
	acts := make([][]anyvec.Vector, numSeqs)
	params := make([][]anyvec.Vector, numSeqs)
	for inBatch := range inputs {
		actBatch := <-actions
		outBatch := <-agentOuts
		for _, dst := range []struct {
			batch *anyseq.Batch
			lanes [][]anyvec.Vector
		}{
			{inBatch, obs},
			{actBatch, acts},
			{outBatch, params},
		} {
			if len(dst.batch.Present) != numSeqs {
				return nil, fmt.Errorf("got %d lanes but %d advantage sequences",
					len(dst.batch.Present), numSeqs)
			}
			for lane, vec := range splitBatch(dst.batch) {
				if vec != nil {
					dst.lanes[lane] = append(dst.lanes[lane], vec)
				}
			}
		}
	}
	var c anyvec.Creator
	for _, vecs := range obs {
		if len(vecs) > 0 {
			c = vecs[0].Creator()
			break
		}
	}
	if c == nil {
		return nil, fmt.Errorf("empty rollouts")
	}

	seqLens := make([]int, numSeqs)
	var maxLen int
	for lane, advSeq := range advantages {
		if len(obs[lane]) != len(advSeq) {
			return nil, fmt.Errorf("lane %d has %d timesteps but %d advantages",
				lane, len(obs[lane]), len(advSeq))
		}
		seqLens[lane] = len(advSeq)
		if len(advSeq) > maxLen {
			maxLen = len(advSeq)
		}
	}

	n := numSeqs * maxLen
	advData := make([]float64, n)
	targetData := make([]float64, n)
	for lane := range advantages {
		for t, adv := range advantages[lane] {
			advData[lane*maxLen+t] = adv
			targetData[lane*maxLen+t] = targets[lane][t]
		}
	}

	obsVec := padAndJoin(c, obs, maxLen)
	actVec := padAndJoin(c, acts, maxLen)
	paramVec := padAndJoin(c, params, maxLen)
	logProbs := space.LogProb(anydiff.NewConst(paramVec), actVec, n).Output().Copy()

	return &Batch{
		Observations:   obsVec,
		Actions:        actVec,
		ActionLogProbs: logProbs,
		Advantages:     c.MakeVectorData(c.MakeNumericList(advData)),
		ValueTargets:   c.MakeVectorData(c.MakeNumericList(targetData)),
		ActionParams:   paramVec,
		SeqLens:        seqLens,
	}, nil
}

// padAndJoin concatenates per-lane vectors in lane-major
// order, zero-padding every lane to maxLen timesteps.
func padAndJoin(c anyvec.Creator, lanes [][]anyvec.Vector, maxLen int) anyvec.Vector {
	var size int
	for _, vecs := range lanes {
		if len(vecs) > 0 {
			size = vecs[0].Len()
			break
		}
	}
	var joined []anyvec.Vector
	for _, vecs := range lanes {
		joined = append(joined, vecs...)
		for i := len(vecs); i < maxLen; i++ {
			joined = append(joined, c.MakeVector(size))
		}
	}
	return c.Concat(joined...)
}

// splitBatch slices a packed batch into one vector per
// present lane.
func splitBatch(b *anyseq.Batch) []anyvec.Vector {
	vec := b.Packed
	res := make([]anyvec.Vector, len(b.Present))
	subLen := vec.Len() / b.NumPresent()
	idx := 0
	for i, pres := range b.Present {
		if pres {
			res[i] = vec.Slice(idx, idx+subLen)
			idx += subLen
		}
	}
	return res
}
