// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package merge

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/branch"
	"github.com/born-ml/multiplymerge/internal/merge"
	"github.com/born-ml/multiplymerge/internal/parallel"
	"github.com/born-ml/multiplymerge/internal/serialization"
)

// MultiplyMerge combines branch outputs by elementwise multiplication.
type MultiplyMerge = merge.MultiplyMerge

// Config holds the construction flags of a layer.
type Config = merge.Config

// State is the position of a layer in the per-step pass cycle.
type State = merge.State

// Pass cycle states.
const (
	Configured   = merge.Configured
	ForwardDone  = merge.ForwardDone
	BackwardDone = merge.BackwardDone
	GradientDone = merge.GradientDone
	Released     = merge.Released
)

// DefaultConfig returns a config for a layer that owns and runs its branches.
func DefaultConfig() Config {
	return merge.DefaultConfig()
}

// New creates an empty layer from cfg.
//
// Example:
//
//	layer := merge.New(merge.Config{Model: true, Run: false})
func New(cfg Config) *MultiplyMerge {
	return merge.NewWithConfig(cfg)
}

// Branch contract

// Branch is a sub-network attached to a merge layer.
type Branch = merge.Branch

// Cloner is implemented by branches that can be deep-copied.
type Cloner = merge.Cloner

// Persistable is implemented by branches that can be saved and rebuilt.
type Persistable = merge.Persistable

// Collection is an ordered sequence of branches with an ownership mode.
type Collection = merge.Collection

// NewCollection creates an empty collection.
func NewCollection(owning bool) *Collection {
	return merge.NewCollection(owning)
}

// Reference branches

// Identity passes its input through unchanged.
type Identity = branch.Identity

// NewIdentity creates an Identity branch.
func NewIdentity() *Identity {
	return branch.NewIdentity()
}

// Scale multiplies its input by a constant.
type Scale = branch.Scale

// NewScale creates a Scale branch with factor c.
func NewScale(c float64) *Scale {
	return branch.NewScale(c)
}

// Sigmoid applies the logistic function elementwise.
type Sigmoid = branch.Sigmoid

// NewSigmoid creates a Sigmoid branch using all CPUs for large inputs.
func NewSigmoid() *Sigmoid {
	return branch.NewSigmoid(parallel.DefaultConfig())
}

// Linear is a fully connected branch; inputs hold one sample per column.
type Linear = branch.Linear

// NewLinear creates a Linear branch with Xavier weights and zero bias.
//
// Example:
//
//	gate := merge.NewLinear(784, 128, rand.New(rand.NewSource(42)))
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return branch.NewLinear(inFeatures, outFeatures, rng)
}

// NewLinearFrom creates a Linear branch from explicit weights and bias.
func NewLinearFrom(weight, bias *mat.Dense) (*Linear, error) {
	return branch.NewLinearFrom(weight, bias)
}

// Persistence

// Registry maps kind tags to branch factories.
type Registry = merge.Registry

// Factory creates a zero-state branch of one kind.
type Factory = merge.Factory

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return merge.NewRegistry()
}

// DefaultRegistry returns a registry holding every reference branch kind.
func DefaultRegistry() *Registry {
	return branch.DefaultRegistry()
}

// ReaderOptions configures how saved layers are read.
type ReaderOptions = serialization.ReaderOptions

// DefaultReaderOptions returns options with checksum and strict header validation.
func DefaultReaderOptions() ReaderOptions {
	return serialization.DefaultReaderOptions()
}

// Errors

// Common errors.
var (
	ErrInvalidConfiguration = merge.ErrInvalidConfiguration
	ErrShapeMismatch        = merge.ErrShapeMismatch
	ErrReleased             = merge.ErrReleased
	ErrNotCloneable         = merge.ErrNotCloneable
	ErrNotPersistable       = merge.ErrNotPersistable
	ErrUnknownKind          = merge.ErrUnknownKind
	ErrChecksumMismatch     = serialization.ErrChecksumMismatch
)

// ShapeMismatchError reports a branch whose output or delta has the wrong shape.
type ShapeMismatchError = merge.ShapeMismatchError
