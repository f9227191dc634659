// Package merge implements MultiplyMerge, a composite layer that runs a set of
// branches on the same input and combines their outputs by elementwise
// multiplication.
//
// The layer drives three passes per training step, always in collection
// order:
//
//	Forward:  output = out_0 ⊙ out_1 ⊙ ... ⊙ out_{n-1}
//	Backward: g      = delta_0 + delta_1 + ... + delta_{n-1}
//	Gradient: every branch accumulates its own weight gradients
//
// Branches are either owned by the layer (released exactly once when the
// layer is released) or borrowed from an enclosing model (never released
// here). The mode is fixed at construction: New(model, run) owns its
// branches when model is false.
//
// Example:
//
//	layer := merge.New(false, true)
//	_ = layer.Add(branchA)
//	_ = layer.Add(branchB)
//	defer layer.Release()
//
//	var out mat.Dense
//	if err := layer.Forward(input, &out); err != nil {
//	    return err
//	}
package merge
