// Package optim implements optimization algorithms for branch parameters.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Gradients are not computed here. Branches accumulate them during the
// Gradient pass of a merge layer and expose them through Parameters.
//
// Example usage:
//
//	optimizer := optim.NewAdam(optim.Collect(layer), optim.AdamConfig{
//	    LR: 0.001,
//	})
//
//	for epoch := range epochs {
//	    _ = layer.Forward(input, &out)
//	    _ = layer.Backward(input, gy, &g)
//	    _ = layer.Gradient(input, errSignal, nil)
//
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/merge"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear gradients before next iteration
//   - GetLR: Get current learning rate (for monitoring/scheduling)
type Optimizer interface {
	// Step applies the accumulated gradients to all parameters in place.
	Step()

	// ZeroGrad clears all parameter gradients.
	//
	// Branches accumulate gradients across Gradient calls, so this should
	// be called once per step.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Parameter is a learnable tensor and the gradient accumulated for it.
// Value and Grad must have the same shape.
type Parameter struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// Parameterized is implemented by branches with learnable parameters.
type Parameterized interface {
	Parameters() []Parameter
}

// Collect returns the parameters of every branch of layer, in collection
// order. Names are prefixed with the branch index.
func Collect(layer interface{ Branches() []merge.Branch }) []Parameter {
	var params []Parameter
	for i, b := range layer.Branches() {
		p, ok := b.(Parameterized)
		if !ok {
			continue
		}
		for _, param := range p.Parameters() {
			param.Name = branchName(i, param.Name)
			params = append(params, param)
		}
	}
	return params
}

// zeroGrads clears the gradient of every parameter.
func zeroGrads(params []Parameter) {
	for _, p := range params {
		if p.Grad != nil {
			p.Grad.Zero()
		}
	}
}

// usable reports whether p has a value and a gradient to apply.
func usable(p Parameter) bool {
	return p.Value != nil && p.Grad != nil && !p.Value.IsEmpty() && !p.Grad.IsEmpty()
}
