package branch

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/merge"
)

// Scale multiplies its input by a fixed factor.
//
// Forward:  y = c * x
// Backward: dx = c * gy
type Scale struct {
	storage
	factor float64
}

// NewScale creates a Scale branch with factor c.
func NewScale(c float64) *Scale {
	return &Scale{factor: c}
}

// Factor returns the scale factor.
func (b *Scale) Factor() float64 { return b.factor }

// Forward computes c * input.
func (b *Scale) Forward(input *mat.Dense) error {
	if err := b.check("scale forward", input); err != nil {
		return err
	}
	b.output.Reset()
	b.output.Scale(b.factor, input)
	return nil
}

// Backward computes c * gy.
func (b *Scale) Backward(_, gy *mat.Dense) error {
	if err := b.check("scale backward", gy); err != nil {
		return err
	}
	b.delta.Reset()
	b.delta.Scale(b.factor, gy)
	return nil
}

// Gradient is a no-op: the factor is not learned.
func (b *Scale) Gradient(_, _ *mat.Dense) error {
	return b.check("scale gradient")
}

// Release frees the stored tensors.
func (b *Scale) Release() { b.release() }

// Clone returns a deep copy.
func (b *Scale) Clone() merge.Branch {
	out := NewScale(b.factor)
	b.copyTo(&out.storage)
	return out
}

// Kind returns KindScale.
func (b *Scale) Kind() string { return KindScale }

// StateDict returns the factor as a 1x1 tensor.
func (b *Scale) StateDict() map[string]*mat.Dense {
	return map[string]*mat.Dense{
		"factor": mat.NewDense(1, 1, []float64{b.factor}),
	}
}

// LoadStateDict restores the factor.
func (b *Scale) LoadStateDict(stateDict map[string]*mat.Dense) error {
	f, ok := stateDict["factor"]
	if !ok {
		return fmt.Errorf("scale: missing factor")
	}
	if r, c := f.Dims(); r != 1 || c != 1 {
		return fmt.Errorf("scale: factor must be 1x1, got %dx%d", r, c)
	}
	b.factor = f.At(0, 0)
	return nil
}
