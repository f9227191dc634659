package branch

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/merge"
	"github.com/born-ml/multiplymerge/internal/optim"
)

// Linear is a fully connected branch.
//
// Inputs hold one sample per column:
//   - x is [in_features, batch]
//   - W is [out_features, in_features]
//   - b is [out_features, 1]
//   - y = W x + b is [out_features, batch]
//
// Backward computes dx = Wᵀ gy. Gradient accumulates dW += err xᵀ and
// db += rowsum(err) until ZeroGrad is called.
type Linear struct {
	storage
	weight     *mat.Dense
	bias       *mat.Dense
	weightGrad *mat.Dense
	biasGrad   *mat.Dense
}

// NewLinear creates a Linear branch with Xavier weights and zero bias.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	l := &Linear{}
	l.setParams(
		Xavier(outFeatures, inFeatures, inFeatures, outFeatures, rng),
		mat.NewDense(outFeatures, 1, nil),
	)
	return l
}

// NewLinearFrom creates a Linear branch from explicit weights and bias.
// Both are copied.
func NewLinearFrom(weight, bias *mat.Dense) (*Linear, error) {
	l := &Linear{}
	if err := l.LoadStateDict(map[string]*mat.Dense{"weight": weight, "bias": bias}); err != nil {
		return nil, err
	}
	return l, nil
}

// InFeatures returns the input size.
func (l *Linear) InFeatures() int {
	if l.weight == nil {
		return 0
	}
	_, c := l.weight.Dims()
	return c
}

// OutFeatures returns the output size.
func (l *Linear) OutFeatures() int {
	if l.weight == nil {
		return 0
	}
	r, _ := l.weight.Dims()
	return r
}

// Weight returns the weight matrix.
func (l *Linear) Weight() *mat.Dense { return l.weight }

// Bias returns the bias column.
func (l *Linear) Bias() *mat.Dense { return l.bias }

// WeightGrad returns the accumulated weight gradient.
func (l *Linear) WeightGrad() *mat.Dense { return l.weightGrad }

// BiasGrad returns the accumulated bias gradient.
func (l *Linear) BiasGrad() *mat.Dense { return l.biasGrad }

// Parameters returns the weight and bias with their accumulated gradients.
// Empty after Release.
func (l *Linear) Parameters() []optim.Parameter {
	if l.weight == nil {
		return nil
	}
	return []optim.Parameter{
		{Name: "weight", Value: l.weight, Grad: l.weightGrad},
		{Name: "bias", Value: l.bias, Grad: l.biasGrad},
	}
}

// ZeroGrad clears the accumulated gradients.
func (l *Linear) ZeroGrad() {
	if l.weightGrad != nil {
		l.weightGrad.Zero()
	}
	if l.biasGrad != nil {
		l.biasGrad.Zero()
	}
}

// Forward computes W input + b.
func (l *Linear) Forward(input *mat.Dense) error {
	if err := l.ready("linear forward", input); err != nil {
		return err
	}
	if r, _ := input.Dims(); r != l.InFeatures() {
		return fmt.Errorf("linear forward: %w: input has %d rows, want %d", merge.ErrShapeMismatch, r, l.InFeatures())
	}

	l.output.Reset()
	l.output.Mul(l.weight, input)
	l.output.Apply(func(i, _ int, v float64) float64 {
		return v + l.bias.At(i, 0)
	}, &l.output)
	return nil
}

// Backward computes Wᵀ gy.
func (l *Linear) Backward(_, gy *mat.Dense) error {
	if err := l.ready("linear backward", gy); err != nil {
		return err
	}
	if r, _ := gy.Dims(); r != l.OutFeatures() {
		return fmt.Errorf("linear backward: %w: gy has %d rows, want %d", merge.ErrShapeMismatch, r, l.OutFeatures())
	}

	l.delta.Reset()
	l.delta.Mul(l.weight.T(), gy)
	return nil
}

// Gradient accumulates err inputᵀ into the weight gradient and the row
// sums of err into the bias gradient.
func (l *Linear) Gradient(input, errSignal *mat.Dense) error {
	if err := l.ready("linear gradient", input, errSignal); err != nil {
		return err
	}
	inRows, inCols := input.Dims()
	errRows, errCols := errSignal.Dims()
	if inRows != l.InFeatures() || errRows != l.OutFeatures() || inCols != errCols {
		return fmt.Errorf("linear gradient: %w: input %dx%d, error %dx%d, weight %dx%d",
			merge.ErrShapeMismatch, inRows, inCols, errRows, errCols, l.OutFeatures(), l.InFeatures())
	}

	var dW mat.Dense
	dW.Mul(errSignal, input.T())
	l.weightGrad.Add(l.weightGrad, &dW)

	for i := 0; i < errRows; i++ {
		l.biasGrad.Set(i, 0, l.biasGrad.At(i, 0)+mat.Sum(errSignal.RowView(i)))
	}
	return nil
}

// Release frees the stored tensors and parameters.
func (l *Linear) Release() {
	l.release()
	l.weight, l.bias, l.weightGrad, l.biasGrad = nil, nil, nil, nil
}

// Clone returns a deep copy, gradients included.
func (l *Linear) Clone() merge.Branch {
	out := &Linear{}
	if l.weight != nil {
		out.weight = mat.DenseCopyOf(l.weight)
		out.bias = mat.DenseCopyOf(l.bias)
		out.weightGrad = mat.DenseCopyOf(l.weightGrad)
		out.biasGrad = mat.DenseCopyOf(l.biasGrad)
	}
	l.copyTo(&out.storage)
	return out
}

// Kind returns KindLinear.
func (l *Linear) Kind() string { return KindLinear }

// StateDict returns the weight and bias.
func (l *Linear) StateDict() map[string]*mat.Dense {
	return map[string]*mat.Dense{
		"weight": l.weight,
		"bias":   l.bias,
	}
}

// LoadStateDict copies weight and bias from stateDict and resets the gradients.
func (l *Linear) LoadStateDict(stateDict map[string]*mat.Dense) error {
	weight, ok := stateDict["weight"]
	if !ok || weight == nil || weight.IsEmpty() {
		return fmt.Errorf("linear: missing weight")
	}
	bias, ok := stateDict["bias"]
	if !ok || bias == nil || bias.IsEmpty() {
		return fmt.Errorf("linear: missing bias")
	}

	out, _ := weight.Dims()
	if r, c := bias.Dims(); r != out || c != 1 {
		return fmt.Errorf("linear: bias must be %dx1, got %dx%d", out, r, c)
	}

	l.setParams(mat.DenseCopyOf(weight), mat.DenseCopyOf(bias))
	return nil
}

// setParams installs parameters and zero gradients of matching shape.
func (l *Linear) setParams(weight, bias *mat.Dense) {
	out, in := weight.Dims()
	l.weight = weight
	l.bias = bias
	l.weightGrad = mat.NewDense(out, in, nil)
	l.biasGrad = mat.NewDense(out, 1, nil)
}

// ready checks the branch has parameters and the tensors are present.
func (l *Linear) ready(op string, tensors ...*mat.Dense) error {
	if err := l.check(op, tensors...); err != nil {
		return err
	}
	if l.weight == nil {
		return fmt.Errorf("%s: %w: no parameters loaded", op, merge.ErrInvalidConfiguration)
	}
	return nil
}
