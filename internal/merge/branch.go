package merge

import (
	"gonum.org/v1/gonum/mat"
)

// Branch is one sub-computation whose output participates in the merge.
//
// A branch owns its output and delta storage. The layer only reads them
// through OutputParameter and Delta and never keeps private copies.
type Branch interface {
	// Forward computes the branch output from input into OutputParameter.
	Forward(input *mat.Dense) error

	// Backward computes the input gradient into Delta from the branch's
	// stored output and the upstream gradient gy.
	Backward(output, gy *mat.Dense) error

	// Gradient accumulates the branch's own weight gradients from the
	// original input and an error signal.
	Gradient(input, errSignal *mat.Dense) error

	// OutputParameter returns the storage written by Forward.
	OutputParameter() *mat.Dense

	// Delta returns the storage written by Backward.
	Delta() *mat.Dense

	// Release frees the branch. Only the owner of a branch calls it.
	Release()
}

// Cloner is implemented by branches that can be deep-copied. Owning layers
// require it to be cloned.
type Cloner interface {
	Clone() Branch
}

// Persistable is implemented by branches that can be saved and rebuilt
// through a Registry.
type Persistable interface {
	// Kind returns the tag the branch is registered under.
	Kind() string

	// StateDict returns the tensors describing the branch, keyed by short name.
	StateDict() map[string]*mat.Dense

	// LoadStateDict restores the branch from tensors produced by StateDict.
	LoadStateDict(stateDict map[string]*mat.Dense) error
}
