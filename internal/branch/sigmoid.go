package branch

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/merge"
	"github.com/born-ml/multiplymerge/internal/parallel"
)

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)) elementwise.
//
// Backward uses the stored output: dx = gy ⊙ y ⊙ (1 - y).
type Sigmoid struct {
	storage
	cfg parallel.Config
}

// NewSigmoid creates a Sigmoid branch. cfg controls how elements are
// spread across goroutines; results do not depend on it.
func NewSigmoid(cfg parallel.Config) *Sigmoid {
	return &Sigmoid{cfg: cfg}
}

// Forward computes σ(input).
func (b *Sigmoid) Forward(input *mat.Dense) error {
	if err := b.check("sigmoid forward", input); err != nil {
		return err
	}
	b.output.CloneFrom(input)
	data := b.output.RawMatrix().Data
	parallel.Map(data, data, sigmoid, b.cfg)
	return nil
}

// Backward computes gy ⊙ output ⊙ (1 - output).
func (b *Sigmoid) Backward(output, gy *mat.Dense) error {
	if err := b.check("sigmoid backward", output, gy); err != nil {
		return err
	}
	if err := sameShape("sigmoid backward", output, gy); err != nil {
		return err
	}

	// Work on a contiguous copy of output in case it is a view.
	y := mat.DenseCopyOf(output)
	b.delta.CloneFrom(gy)
	delta := b.delta.RawMatrix().Data
	parallel.Zip(delta, delta, y.RawMatrix().Data, func(g, y float64) float64 {
		return g * y * (1 - y)
	}, b.cfg)
	return nil
}

// Gradient is a no-op: Sigmoid has no weights.
func (b *Sigmoid) Gradient(_, _ *mat.Dense) error {
	return b.check("sigmoid gradient")
}

// Release frees the stored tensors.
func (b *Sigmoid) Release() { b.release() }

// Clone returns a deep copy.
func (b *Sigmoid) Clone() merge.Branch {
	out := NewSigmoid(b.cfg)
	b.copyTo(&out.storage)
	return out
}

// Kind returns KindSigmoid.
func (b *Sigmoid) Kind() string { return KindSigmoid }

// StateDict returns an empty map.
func (b *Sigmoid) StateDict() map[string]*mat.Dense {
	return map[string]*mat.Dense{}
}

// LoadStateDict accepts an empty state.
func (b *Sigmoid) LoadStateDict(_ map[string]*mat.Dense) error {
	return nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
