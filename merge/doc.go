// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package merge provides a multiplicative merge layer for branching networks.
//
// # Overview
//
// A MultiplyMerge holds an ordered collection of branches that all see the
// same input. Its forward pass multiplies the branch outputs elementwise;
// its backward pass sums the branch deltas. The package contains:
//   - Layer: MultiplyMerge, Config
//   - Branch contract: Branch, Cloner, Persistable
//   - Reference branches: Identity, Scale, Sigmoid, Linear
//   - Persistence: Save/Load in the .mmrg container, kind Registry
//
// # Basic Usage
//
//	import "github.com/born-ml/multiplymerge/merge"
//
//	func main() {
//	    layer := merge.New(merge.DefaultConfig())
//	    defer layer.Release()
//
//	    _ = layer.Add(merge.NewLinear(4, 4, rand.New(rand.NewSource(1))))
//	    _ = layer.Add(merge.NewSigmoid())
//
//	    var out mat.Dense
//	    if err := layer.Forward(input, &out); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Ownership
//
// A layer built with Model=false owns its branches and releases each of
// them exactly once. A layer built with Model=true borrows them from an
// enclosing model and never releases them. Clone and CopyFrom deep-copy
// owned branches and share borrowed ones.
//
// # Gradients
//
// Backward returns the plain sum of branch deltas, not the product-rule
// derivative of the forward merge.
//
// # Persistence
//
//	layer.SaveFile("gate.mmrg", map[string]string{"epoch": "3"})
//
//	loaded := merge.New(merge.DefaultConfig())
//	err := loaded.LoadFile("gate.mmrg", merge.DefaultRegistry(), merge.DefaultReaderOptions())
package merge
