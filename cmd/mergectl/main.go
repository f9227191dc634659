// Package main provides the mergectl CLI for multiplicative merge layers.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/branch"
	"github.com/born-ml/multiplymerge/internal/merge"
	"github.com/born-ml/multiplymerge/internal/optim"
	"github.com/born-ml/multiplymerge/internal/serialization"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("mergectl %s\n", version)
	case "demo":
		if err := runDemo(); err != nil {
			log.Fatalf("demo: %v", err)
		}
	case "train":
		if err := runTrain(os.Stdout, 300); err != nil {
			log.Fatalf("train: %v", err)
		}
	case "save":
		if len(os.Args) < 3 {
			log.Fatal("usage: mergectl save <file>")
		}
		if err := runSave(os.Args[2]); err != nil {
			log.Fatalf("save: %v", err)
		}
	case "inspect":
		if len(os.Args) < 3 {
			log.Fatal("usage: mergectl inspect <file>")
		}
		if err := runInspect(os.Args[2]); err != nil {
			log.Fatalf("inspect: %v", err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("mergectl - multiplicative merge layer tool")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version          Show version")
	fmt.Println("  demo             Run a two-branch forward/backward step")
	fmt.Println("  train            Fit a linear-times-identity gate with Adam")
	fmt.Println("  save <file>      Write the demo layer to a .mmrg file")
	fmt.Println("  inspect <file>   Print the header of a .mmrg file")
}

// demoLayer builds two linear branches whose outputs are [1,2,3] and
// [4,5,6] for the input [1,2,3].
func demoLayer() (*merge.MultiplyMerge, error) {
	params := []struct {
		scale float64
		bias  []float64
	}{
		{scale: 1, bias: []float64{0, 0, 0}},
		{scale: 2, bias: []float64{2, 1, 0}},
	}

	layer := merge.NewWithConfig(merge.DefaultConfig())
	for _, p := range params {
		w := mat.NewDiagDense(3, []float64{p.scale, p.scale, p.scale})
		l, err := branch.NewLinearFrom(mat.DenseCopyOf(w), mat.NewDense(3, 1, p.bias))
		if err != nil {
			layer.Release()
			return nil, err
		}
		if err := addOwned(layer, l); err != nil {
			layer.Release()
			return nil, err
		}
	}
	return layer, nil
}

// addOwned hands branches to layer. On failure the branch that was refused
// and every branch after it are released, since layer never took them.
func addOwned(layer *merge.MultiplyMerge, branches ...merge.Branch) error {
	for i, b := range branches {
		if err := layer.Add(b); err != nil {
			for _, rest := range branches[i:] {
				rest.Release()
			}
			return err
		}
	}
	return nil
}

func runDemo() error {
	layer, err := demoLayer()
	if err != nil {
		return err
	}
	defer layer.Release()

	input := mat.NewDense(3, 1, []float64{1, 2, 3})
	var out, g mat.Dense
	if err := layer.Forward(input, &out); err != nil {
		return err
	}
	if err := layer.Backward(input, mat.NewDense(3, 1, []float64{1, 1, 1}), &g); err != nil {
		return err
	}

	for i, b := range layer.Branches() {
		fmt.Printf("branch %d output: %v\n", i, mat.Col(nil, 0, b.OutputParameter()))
	}
	fmt.Printf("forward:  %v\n", mat.Col(nil, 0, &out))
	for i, b := range layer.Branches() {
		fmt.Printf("branch %d delta:  %v\n", i, mat.Col(nil, 0, b.Delta()))
	}
	fmt.Printf("backward: %v\n", mat.Col(nil, 0, &g))
	return nil
}

// runTrain fits y = (w*x + b) * x to y = (2x + 1) * x. The linear branch
// receives the product-rule error signal dL/dout * x.
func runTrain(w io.Writer, steps int) error {
	linear, err := branch.NewLinearFrom(mat.NewDense(1, 1, []float64{0}), mat.NewDense(1, 1, []float64{0}))
	if err != nil {
		return err
	}

	layer := merge.NewWithConfig(merge.DefaultConfig())
	defer layer.Release()
	if err := addOwned(layer, linear, branch.NewIdentity()); err != nil {
		return err
	}

	x := mat.NewDense(1, 4, []float64{-1, -0.5, 0.5, 1})
	target := mat.NewDense(1, 4, nil)
	target.Apply(func(_, j int, _ float64) float64 {
		v := x.At(0, j)
		return (2*v + 1) * v
	}, target)

	n := float64(4)
	adam := optim.NewAdam(optim.Collect(layer), optim.AdamConfig{LR: 0.05})

	var out, g, diff, errSignal mat.Dense
	for step := 1; step <= steps; step++ {
		if err := layer.Forward(x, &out); err != nil {
			return err
		}

		diff.Sub(&out, target)
		loss := mat.Dot(diff.RowView(0), diff.RowView(0)) / n

		// dL/dout = 2(out - target)/n, then through the product with x.
		errSignal.Scale(2/n, &diff)
		errSignal.MulElem(&errSignal, x)

		if err := layer.Backward(x, &diff, &g); err != nil {
			return err
		}
		if err := layer.Gradient(x, &errSignal, nil); err != nil {
			return err
		}
		adam.Step()
		adam.ZeroGrad()

		if step == 1 || step%50 == 0 || step == steps {
			fmt.Fprintf(w, "step %4d  loss %.6f\n", step, loss)
		}
	}

	fmt.Fprintf(w, "w = %.4f  b = %.4f\n", linear.Weight().At(0, 0), linear.Bias().At(0, 0))
	return nil
}

func runSave(path string) error {
	layer, err := demoLayer()
	if err != nil {
		return err
	}
	defer layer.Release()

	if err := layer.SaveFile(path, map[string]string{"source": "mergectl demo"}); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d branches)\n", path, layer.Len())
	return nil
}

func runInspect(path string) error {
	file, err := serialization.DecodeFile(path, serialization.DefaultReaderOptions())
	if err != nil {
		return err
	}
	h := file.Header

	fmt.Printf("File:      %s\n", path)
	fmt.Printf("Version:   %d (producer %s)\n", file.Version, h.Producer)
	fmt.Printf("Layer:     %s\n", h.LayerType)
	fmt.Printf("Created:   %s\n", h.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Flags:     model=%t run=%t owns_layer=%t\n", h.Model, h.Run, h.OwnsLayer)
	fmt.Printf("Checksum:  %s\n", serialization.FormatChecksum(file.Checksum))

	fmt.Printf("\nBranches (%d):\n", len(h.Branches))
	for i, b := range h.Branches {
		fmt.Printf("  [%d] %-10s %s\n", i, b.Kind, strings.Join(b.Tensors, ", "))
	}

	fmt.Printf("\nTensors (%d):\n", len(h.Tensors))
	for _, t := range h.Tensors {
		fmt.Printf("  %-20s %v  %d bytes @ %d\n", t.Name, t.Shape, t.Size, t.Offset)
	}
	if h.Weights != "" {
		fmt.Printf("\nWeights:   %s\n", h.Weights)
	}

	if len(h.Metadata) > 0 {
		fmt.Println("\nMetadata:")
		for k, v := range h.Metadata {
			fmt.Printf("  %s: %s\n", k, v)
		}
	}

	known := branch.DefaultRegistry().Kinds()
	for _, b := range h.Branches {
		if !slices.Contains(known, b.Kind) {
			fmt.Printf("\nwarning: kind %q is not built into mergectl\n", b.Kind)
		}
	}
	return nil
}
