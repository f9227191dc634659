// Package branch provides reference branch kinds for merge layers.
//
// Every kind stores its own output and delta, implements merge.Cloner for
// ownership-aware copies and merge.Persistable so it can be saved and
// rebuilt through DefaultRegistry.
package branch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/merge"
	"github.com/born-ml/multiplymerge/internal/parallel"
)

// Kind tags.
const (
	KindIdentity = "identity"
	KindScale    = "scale"
	KindSigmoid  = "sigmoid"
	KindLinear   = "linear"
)

// ErrReleased is returned by a branch used after Release.
var ErrReleased = errors.New("branch has been released")

// DefaultRegistry returns a registry holding every kind in this package.
func DefaultRegistry() *merge.Registry {
	reg := merge.NewRegistry()
	reg.MustRegister(KindIdentity, func() merge.Branch { return NewIdentity() })
	reg.MustRegister(KindScale, func() merge.Branch { return NewScale(1) })
	reg.MustRegister(KindSigmoid, func() merge.Branch { return NewSigmoid(parallel.DefaultConfig()) })
	reg.MustRegister(KindLinear, func() merge.Branch { return &Linear{} })
	return reg
}

// storage is the output/delta pair every branch owns.
type storage struct {
	output   mat.Dense
	delta    mat.Dense
	releases int
}

// OutputParameter returns the storage written by Forward.
func (s *storage) OutputParameter() *mat.Dense { return &s.output }

// Delta returns the storage written by Backward.
func (s *storage) Delta() *mat.Dense { return &s.delta }

// Releases returns how many times Release has been called.
func (s *storage) Releases() int { return s.releases }

// release drops the stored tensors and counts the call.
func (s *storage) release() {
	s.releases++
	s.output.Reset()
	s.delta.Reset()
}

// copyTo deep-copies the stored tensors into dst.
func (s *storage) copyTo(dst *storage) {
	if !s.output.IsEmpty() {
		dst.output.CloneFrom(&s.output)
	}
	if !s.delta.IsEmpty() {
		dst.delta.CloneFrom(&s.delta)
	}
}

// check validates the state of a branch before a pass.
func (s *storage) check(op string, tensors ...*mat.Dense) error {
	if s.releases > 0 {
		return fmt.Errorf("%s: %w", op, ErrReleased)
	}
	for _, t := range tensors {
		if t == nil || t.IsEmpty() {
			return fmt.Errorf("%s: %w", op, merge.ErrNilTensor)
		}
	}
	return nil
}

// sameShape returns a ShapeMismatchError if a and b differ.
func sameShape(op string, a, b *mat.Dense) error {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return &merge.ShapeMismatchError{Op: op, WantRows: ar, WantCols: ac, GotRows: br, GotCols: bc}
	}
	return nil
}
