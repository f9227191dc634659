package merge_test

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/merge"
)

// fixedBranch is a counting mock: Forward installs a preset output,
// Backward a preset delta, and every call is recorded.
type fixedBranch struct {
	name      string
	out       *mat.Dense
	delta     *mat.Dense
	output    mat.Dense
	deltaBuf  mat.Dense
	forwards  int
	backwards int
	gradients int
	releases  int
	log       *[]string

	lastBackwardOutput *mat.Dense
	lastGy             *mat.Dense
	lastGradInput      *mat.Dense
	lastGradErr        *mat.Dense
}

func newFixed(name string, out, delta []float64, log *[]string) *fixedBranch {
	b := &fixedBranch{name: name, log: log}
	if out != nil {
		b.out = mat.NewDense(1, len(out), out)
	}
	if delta != nil {
		b.delta = mat.NewDense(1, len(delta), delta)
	}
	return b
}

func (b *fixedBranch) record(op string) {
	if b.log != nil {
		*b.log = append(*b.log, b.name+"."+op)
	}
}

func (b *fixedBranch) Forward(_ *mat.Dense) error {
	b.forwards++
	b.record("forward")
	if b.out != nil {
		b.output.CloneFrom(b.out)
	}
	return nil
}

func (b *fixedBranch) Backward(output, gy *mat.Dense) error {
	b.backwards++
	b.record("backward")
	b.lastBackwardOutput = output
	b.lastGy = gy
	if b.delta != nil {
		b.deltaBuf.CloneFrom(b.delta)
	}
	return nil
}

func (b *fixedBranch) Gradient(input, errSignal *mat.Dense) error {
	b.gradients++
	b.record("gradient")
	b.lastGradInput = input
	b.lastGradErr = errSignal
	return nil
}

func (b *fixedBranch) OutputParameter() *mat.Dense { return &b.output }

func (b *fixedBranch) Delta() *mat.Dense { return &b.deltaBuf }

func (b *fixedBranch) Release() { b.releases++ }

// preset fills the output storage as an external caller would when the
// layer does not run its branches.
func (b *fixedBranch) preset() *fixedBranch {
	b.output.CloneFrom(b.out)
	return b
}

// cloneableBranch adds Clone to fixedBranch.
type cloneableBranch struct {
	*fixedBranch
	clones *[]*cloneableBranch
}

func (b *cloneableBranch) Clone() merge.Branch {
	cp := &cloneableBranch{
		fixedBranch: &fixedBranch{name: b.name + "'", out: b.out, delta: b.delta, log: b.log},
		clones:      b.clones,
	}
	if !b.output.IsEmpty() {
		cp.output.CloneFrom(&b.output)
	}
	if b.clones != nil {
		*b.clones = append(*b.clones, cp)
	}
	return cp
}

// failingBranch returns err from every pass.
type failingBranch struct {
	fixedBranch
	err error
}

func (b *failingBranch) Forward(_ *mat.Dense) error {
	b.forwards++
	return b.err
}

func (b *failingBranch) Backward(_, _ *mat.Dense) error {
	b.backwards++
	return b.err
}

func (b *failingBranch) Gradient(_, _ *mat.Dense) error {
	b.gradients++
	return b.err
}

func row(values ...float64) *mat.Dense {
	return mat.NewDense(1, len(values), values)
}

func rowData(m *mat.Dense) []float64 {
	_, c := m.Dims()
	out := make([]float64, c)
	for j := range out {
		out[j] = m.At(0, j)
	}
	return out
}
