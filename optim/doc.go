// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers for the learnable branches of merge layers.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/multiplymerge/merge"
//	    "github.com/born-ml/multiplymerge/optim"
//	)
//
//	layer := merge.New(merge.DefaultConfig())
//	_ = layer.Add(merge.NewLinear(4, 4, rng))
//	_ = layer.Add(merge.NewSigmoid())
//
//	optimizer := optim.NewAdam(optim.Collect(layer), optim.AdamConfig{LR: 0.001})
//
//	for step := range steps {
//	    _ = layer.Forward(x, &out)
//	    _ = layer.Backward(x, gy, &g)
//	    _ = layer.Gradient(x, errSignal, nil)
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
//
// Branches accumulate gradients across Gradient calls; call ZeroGrad once
// per step.
package optim
