package merge

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// State is the position of a layer in the per-step pass cycle.
type State int

// Pass cycle states.
const (
	Configured State = iota
	ForwardDone
	BackwardDone
	GradientDone
	Released
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case ForwardDone:
		return "forward-done"
	case BackwardDone:
		return "backward-done"
	case GradientDone:
		return "gradient-done"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Config holds the construction flags of a MultiplyMerge.
type Config struct {
	// Model marks the branches as belonging to an enclosing model. A layer
	// built with Model set borrows its branches instead of owning them.
	Model bool

	// Run makes the layer drive Forward, Backward and Gradient on every
	// branch. When false the branches are assumed to be computed elsewhere.
	Run bool
}

// DefaultConfig returns a config for a layer that owns and runs its branches.
func DefaultConfig() Config {
	return Config{Model: false, Run: true}
}

// MultiplyMerge combines the outputs of its branches by elementwise
// multiplication.
//
// MultiplyMerge is not safe for concurrent use.
type MultiplyMerge struct {
	model   bool
	run     bool
	network *Collection
	weights *mat.Dense
	state   State
}

// New creates an empty layer. The layer owns its branches when model is false.
func New(model, run bool) *MultiplyMerge {
	return &MultiplyMerge{
		model:   model,
		run:     run,
		network: NewCollection(!model),
		state:   Configured,
	}
}

// NewWithConfig creates an empty layer from cfg.
func NewWithConfig(cfg Config) *MultiplyMerge {
	return New(cfg.Model, cfg.Run)
}

// Model returns the model flag.
func (m *MultiplyMerge) Model() bool { return m.model }

// Run returns the run flag.
func (m *MultiplyMerge) Run() bool { return m.run }

// OwnsLayer reports whether the layer releases its branches.
func (m *MultiplyMerge) OwnsLayer() bool { return m.network.Owning() }

// State returns the current pass state.
func (m *MultiplyMerge) State() State { return m.state }

// Len returns the number of branches.
func (m *MultiplyMerge) Len() int { return m.network.Len() }

// Branch returns the branch at index i.
func (m *MultiplyMerge) Branch(i int) Branch { return m.network.At(i) }

// Branches returns the branches in collection order.
func (m *MultiplyMerge) Branches() []Branch { return m.network.Branches() }

// Weights returns the layer's weight aggregate. It may be nil.
//
// The aggregate is persisted with the layer but never touched by Forward,
// Backward or Gradient; learnable weights live inside the branches.
func (m *MultiplyMerge) Weights() *mat.Dense { return m.weights }

// SetWeights replaces the weight aggregate.
func (m *MultiplyMerge) SetWeights(w *mat.Dense) { m.weights = w }

// Add attaches b at the end of the collection. An owning layer takes
// ownership of b.
func (m *MultiplyMerge) Add(b Branch) error {
	if m.state == Released {
		return ErrReleased
	}
	return m.network.Append(b)
}

// Forward runs every branch on input (when run is set) and writes the
// left-fold elementwise product of their outputs into output:
//
//	output = out_0 ⊙ out_1 ⊙ ... ⊙ out_{n-1}
//
// The fold order is the collection order. output is resized as needed.
// output may be one of the branches' own output tensors; the product is
// then folded in scratch space first. Views that share backing data with a
// branch output are not detected.
func (m *MultiplyMerge) Forward(input, output *mat.Dense) error {
	if m.state == Released {
		return ErrReleased
	}
	if m.network.Len() == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "forward: no branches")
	}
	if output == nil {
		return errors.Wrap(ErrNilTensor, "forward: output")
	}

	if m.run {
		err := m.network.Each(func(i int, b Branch) error {
			return errors.WithMessagef(b.Forward(input), "forward: branch %d", i)
		})
		if err != nil {
			return err
		}
	}

	outputs := make([]*mat.Dense, m.network.Len())
	for i := range outputs {
		outputs[i] = m.network.At(i).OutputParameter()
	}
	if err := checkShapes("forward", outputs); err != nil {
		return err
	}

	dst := output
	for _, out := range outputs {
		if out == output {
			dst = &mat.Dense{}
			break
		}
	}

	dst.CloneFrom(outputs[0])
	for _, out := range outputs[1:] {
		dst.MulElem(dst, out)
	}
	if dst != output {
		output.CloneFrom(dst)
	}

	m.state = ForwardDone
	return nil
}

// Backward propagates gy through the branches and writes the sum of their
// deltas into g:
//
//	g = delta_0 + delta_1 + ... + delta_{n-1}
//
// Each branch receives its own stored output and the unmodified gy. Note
// that this is a plain sum, not the product-rule derivative of the forward
// merge (which would scale each delta by the other branches' outputs).
// Callers relying on exact gradients through this layer must account for it.
//
// When run is false the layer is an identity: g = gy, branches untouched.
func (m *MultiplyMerge) Backward(input, gy, g *mat.Dense) error {
	if m.state == Released {
		return ErrReleased
	}
	if gy == nil || g == nil {
		return errors.Wrap(ErrNilTensor, "backward: gy and g are required")
	}

	if !m.run {
		g.CloneFrom(gy)
		m.state = BackwardDone
		return nil
	}

	if m.network.Len() == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "backward: no branches")
	}

	err := m.network.Each(func(i int, b Branch) error {
		return errors.WithMessagef(b.Backward(b.OutputParameter(), gy), "backward: branch %d", i)
	})
	if err != nil {
		return err
	}

	deltas := make([]*mat.Dense, m.network.Len())
	for i := range deltas {
		deltas[i] = m.network.At(i).Delta()
	}
	if err := checkShapes("backward", deltas); err != nil {
		return err
	}

	g.CloneFrom(deltas[0])
	for _, d := range deltas[1:] {
		g.Add(g, d)
	}

	m.state = BackwardDone
	return nil
}

// Gradient lets every branch accumulate its weight gradients from input and
// errSignal. The layer has no parameters of its own, so gradient is left
// untouched. No-op when run is false.
func (m *MultiplyMerge) Gradient(input, errSignal, gradient *mat.Dense) error {
	if m.state == Released {
		return ErrReleased
	}

	if m.run {
		err := m.network.Each(func(i int, b Branch) error {
			return errors.WithMessagef(b.Gradient(input, errSignal), "gradient: branch %d", i)
		})
		if err != nil {
			return err
		}
	}

	m.state = GradientDone
	return nil
}

// Release frees the branches if the layer owns them. Borrowed branches are
// left alive. Calling Release more than once is a no-op.
func (m *MultiplyMerge) Release() {
	if m.state == Released {
		return
	}
	m.state = Released
	m.network.Clear()
	m.weights = nil
}

// Clone returns a copy of the layer. An owning layer deep-clones its
// branches (each must implement Cloner) so the copy and the original never
// release the same branch; a borrowing layer shares them.
func (m *MultiplyMerge) Clone() (*MultiplyMerge, error) {
	if m.state == Released {
		return nil, ErrReleased
	}

	network, err := m.network.Clone()
	if err != nil {
		return nil, errors.WithMessage(err, "clone")
	}

	return &MultiplyMerge{
		model:   m.model,
		run:     m.run,
		network: network,
		weights: cloneDense(m.weights),
		state:   Configured,
	}, nil
}

// CopyFrom replaces the layer's contents with a copy of src, following the
// ownership rules of Clone. Branches owned by m are released unless the copy
// still holds them, as when src borrows branches that m owns.
// Copying a layer onto itself is a no-op.
func (m *MultiplyMerge) CopyFrom(src *MultiplyMerge) error {
	if src == m {
		return nil
	}
	if m.state == Released || src.state == Released {
		return ErrReleased
	}

	cp, err := src.Clone()
	if err != nil {
		return err
	}

	m.network.ClearExcept(cp.network)
	*m = *cp
	return nil
}

// MoveFrom transfers the flags, branches and weights of src into m. Branches
// owned by m are released unless src also holds them. src is left empty and non-owning, so it can
// never release the moved branches. Moving a layer onto itself is a no-op.
func (m *MultiplyMerge) MoveFrom(src *MultiplyMerge) error {
	if src == m {
		return nil
	}
	if m.state == Released || src.state == Released {
		return ErrReleased
	}

	m.network.ClearExcept(src.network)
	m.model = src.model
	m.run = src.run
	m.weights = src.weights
	m.network = src.network
	m.state = Configured

	src.network = NewCollection(false)
	src.weights = nil
	src.state = Configured
	return nil
}

// checkShapes verifies that every tensor exists and matches the first one.
func checkShapes(op string, tensors []*mat.Dense) error {
	var wantRows, wantCols int
	for i, t := range tensors {
		var rows, cols int
		if t != nil && !t.IsEmpty() {
			rows, cols = t.Dims()
		}
		if i == 0 {
			wantRows, wantCols = rows, cols
		}
		if rows == 0 || cols == 0 || rows != wantRows || cols != wantCols {
			return &ShapeMismatchError{
				Op:       op,
				Index:    i,
				WantRows: wantRows,
				WantCols: wantCols,
				GotRows:  rows,
				GotCols:  cols,
			}
		}
	}
	return nil
}

// cloneDense deep-copies d. Returns nil for nil.
func cloneDense(d *mat.Dense) *mat.Dense {
	if d == nil {
		return nil
	}
	if d.IsEmpty() {
		return &mat.Dense{}
	}
	return mat.DenseCopyOf(d)
}
