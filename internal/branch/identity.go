package branch

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/merge"
)

// Identity passes its input through unchanged.
type Identity struct {
	storage
}

// NewIdentity creates an Identity branch.
func NewIdentity() *Identity {
	return &Identity{}
}

// Forward copies input into the output.
func (b *Identity) Forward(input *mat.Dense) error {
	if err := b.check("identity forward", input); err != nil {
		return err
	}
	b.output.CloneFrom(input)
	return nil
}

// Backward copies gy into the delta.
func (b *Identity) Backward(_, gy *mat.Dense) error {
	if err := b.check("identity backward", gy); err != nil {
		return err
	}
	b.delta.CloneFrom(gy)
	return nil
}

// Gradient is a no-op: Identity has no weights.
func (b *Identity) Gradient(_, _ *mat.Dense) error {
	return b.check("identity gradient")
}

// Release frees the stored tensors.
func (b *Identity) Release() { b.release() }

// Clone returns a deep copy.
func (b *Identity) Clone() merge.Branch {
	out := NewIdentity()
	b.copyTo(&out.storage)
	return out
}

// Kind returns KindIdentity.
func (b *Identity) Kind() string { return KindIdentity }

// StateDict returns an empty map.
func (b *Identity) StateDict() map[string]*mat.Dense {
	return map[string]*mat.Dense{}
}

// LoadStateDict accepts an empty state.
func (b *Identity) LoadStateDict(_ map[string]*mat.Dense) error {
	return nil
}
