package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/branch"
	"github.com/born-ml/multiplymerge/internal/merge"
	"github.com/born-ml/multiplymerge/internal/optim"
)

func scalarParam(value, grad float64) optim.Parameter {
	return optim.Parameter{
		Name:  "x",
		Value: mat.NewDense(1, 1, []float64{value}),
		Grad:  mat.NewDense(1, 1, []float64{grad}),
	}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	p := scalarParam(2, 1)
	sgd := optim.NewSGD([]optim.Parameter{p}, optim.SGDConfig{LR: 0.1})

	sgd.Step()

	// x = 2.0 - 0.1 * 1.0
	assert.InDelta(t, 1.9, p.Value.At(0, 0), 1e-12)
	assert.Empty(t, sgd.StateDict())
}

func TestSGD_WithMomentum(t *testing.T) {
	p := scalarParam(1, 1)
	sgd := optim.NewSGD([]optim.Parameter{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	// v1 = 1, x = 1 - 0.1
	sgd.Step()
	assert.InDelta(t, 0.9, p.Value.At(0, 0), 1e-12)

	// v2 = 0.9 + 1 = 1.9, x = 0.9 - 0.19
	sgd.Step()
	assert.InDelta(t, 0.71, p.Value.At(0, 0), 1e-12)

	state := sgd.StateDict()
	require.Contains(t, state, "velocity.0")
	assert.InDelta(t, 1.9, state["velocity.0"].At(0, 0), 1e-12)

	// A fresh optimizer restored from the state continues identically.
	q := scalarParam(0.71, 1)
	restored := optim.NewSGD([]optim.Parameter{q}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, restored.LoadStateDict(state))
	sgd.Step()
	restored.Step()
	assert.InDelta(t, p.Value.At(0, 0), q.Value.At(0, 0), 1e-12)

	bad := map[string]*mat.Dense{"velocity.0": mat.NewDense(2, 1, nil)}
	assert.Error(t, restored.LoadStateDict(bad))
}

func TestSGD_Defaults(t *testing.T) {
	sgd := optim.NewSGD(nil, optim.SGDConfig{})
	assert.Equal(t, 0.01, sgd.GetLR())
	sgd.SetLR(0.5)
	assert.Equal(t, 0.5, sgd.GetLR())
}

func TestAdam_FirstStep(t *testing.T) {
	p := scalarParam(1, 1)
	adam := optim.NewAdam([]optim.Parameter{p}, optim.AdamConfig{})

	adam.Step()

	// With bias correction the first step moves by lr * g / (|g| + eps).
	assert.InDelta(t, 1-0.001, p.Value.At(0, 0), 1e-9)
	assert.Equal(t, 1, adam.Timestep())
	assert.Equal(t, 0.001, adam.GetLR())
}

func TestAdam_SkipsMissingGradient(t *testing.T) {
	p := optim.Parameter{Name: "x", Value: mat.NewDense(1, 1, []float64{3})}
	adam := optim.NewAdam([]optim.Parameter{p}, optim.AdamConfig{LR: 0.1})

	adam.Step()
	assert.Equal(t, 3.0, p.Value.At(0, 0))
}

func TestZeroGrad(t *testing.T) {
	p := scalarParam(1, 5)
	var opt optim.Optimizer = optim.NewAdam([]optim.Parameter{p}, optim.AdamConfig{})
	opt.ZeroGrad()
	assert.Zero(t, p.Grad.At(0, 0))
}

func TestCollect(t *testing.T) {
	layer := merge.New(false, true)
	defer layer.Release()

	linear, err := branch.NewLinearFrom(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, nil))
	require.NoError(t, err)
	require.NoError(t, layer.Add(branch.NewIdentity()))
	require.NoError(t, layer.Add(linear))

	params := optim.Collect(layer)
	require.Len(t, params, 2)
	assert.Equal(t, "branch.1.weight", params[0].Name)
	assert.Equal(t, "branch.1.bias", params[1].Name)
	assert.Same(t, linear.Weight(), params[0].Value)
	assert.Same(t, linear.WeightGrad(), params[0].Grad)
}

// TestTrainLinearBranch fits y = 2x + 1 through a single-branch layer.
func TestTrainLinearBranch(t *testing.T) {
	linear, err := branch.NewLinearFrom(mat.NewDense(1, 1, []float64{0}), mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)

	layer := merge.New(false, true)
	defer layer.Release()
	require.NoError(t, layer.Add(linear))

	x := mat.NewDense(1, 4, []float64{-1, 0, 1, 2})
	target := mat.NewDense(1, 4, []float64{-1, 1, 3, 5})
	sgd := optim.NewSGD(optim.Collect(layer), optim.SGDConfig{LR: 0.1, Momentum: 0.5})

	loss := func(out *mat.Dense) float64 {
		var diff mat.Dense
		diff.Sub(out, target)
		return mat.Sum(mulElem(&diff, &diff)) / 4
	}

	var out, g mat.Dense
	require.NoError(t, layer.Forward(x, &out))
	initial := loss(&out)

	for step := 0; step < 200; step++ {
		require.NoError(t, layer.Forward(x, &out))

		var errSignal mat.Dense
		errSignal.Sub(&out, target)
		errSignal.Scale(2.0/4, &errSignal)

		require.NoError(t, layer.Backward(x, &errSignal, &g))
		require.NoError(t, layer.Gradient(x, &errSignal, nil))
		sgd.Step()
		sgd.ZeroGrad()
	}

	require.NoError(t, layer.Forward(x, &out))
	assert.Less(t, loss(&out), initial)
	assert.InDelta(t, 2.0, linear.Weight().At(0, 0), 1e-3)
	assert.InDelta(t, 1.0, linear.Bias().At(0, 0), 1e-3)
	assert.False(t, math.IsNaN(loss(&out)))
}

func mulElem(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}
