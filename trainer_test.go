package anyppo

import (
	"math"
	"testing"

	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestTrainerStep(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	space := &fakeSpace{kl: 0.05}
	cfg := testConfig(space)
	cfg.KLCoeff = 1
	cfg.KLTarget = 0.01
	cfg.LR = ConstSchedule(0.5)
	obj, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	model := newConstModel(c, []float64{0}, []float64{0})
	trainer := &Trainer{Objective: obj, Model: model}

	batch := testBatch(c, []float64{0}, []float64{1}, []float64{0})
	stats, err := trainer.Step(batch)
	if err != nil {
		t.Fatal(err)
	}

	// d(loss)/dp = -1 at p=0, so descending with lr=0.5
	// moves the parameter to 0.5.
	assertVec(t, model.params.Vector, []float64{0.5})

	// The measured KL (0.05) exceeds twice the target, so
	// the coefficient grows after the step.
	if math.Abs(stats.KLCoeff-1) > 1e-9 {
		t.Errorf("expected stats from before the update, got coeff %f", stats.KLCoeff)
	}
	if math.Abs(obj.KLCoeff()-1.5) > 1e-9 {
		t.Errorf("expected updated coeff 1.5 but got %f", obj.KLCoeff())
	}

	if obj.GlobalStep() != 1 {
		t.Errorf("expected global step 1 but got %d", obj.GlobalStep())
	}
}

func TestTrainerTransformer(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	cfg := testConfig(&fakeSpace{})
	cfg.LR = ConstSchedule(0.1)
	obj, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	model := newConstModel(c, []float64{0}, []float64{0})
	trainer := &Trainer{
		Objective:   obj,
		Model:       model,
		Transformer: &anysgd.Adam{},
	}

	batch := testBatch(c, []float64{0}, []float64{1}, []float64{0})
	if _, err := trainer.Step(batch); err != nil {
		t.Fatal(err)
	}

	// Adam normalizes the first step to roughly the
	// learning rate; the sign of the update is what
	// matters here.
	p := model.params.Vector.Data().([]float64)[0]
	if p <= 0 {
		t.Errorf("expected a positive parameter update but got %f", p)
	}
}
