package merge

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/serialization"
)

const (
	layerType   = "MultiplyMerge"
	weightsName = "weights"
)

// Save writes the layer to w: branches as an ordered list of kind-tagged
// records with their state tensors, followed by the model, run and
// ownership flags and the weight aggregate.
//
// Every branch must implement Persistable.
func (m *MultiplyMerge) Save(w io.Writer, metadata map[string]string) error {
	header, tensors, err := m.encode(metadata)
	if err != nil {
		return err
	}
	return errors.WithMessage(serialization.Encode(w, header, tensors), "save")
}

// SaveFile writes the layer to a .mmrg file at path.
func (m *MultiplyMerge) SaveFile(path string, metadata map[string]string) error {
	header, tensors, err := m.encode(metadata)
	if err != nil {
		return err
	}
	return errors.WithMessage(serialization.EncodeFile(path, header, tensors), "save")
}

// Load replaces the layer's branches, flags and weights with the contents
// read from r. Branch kinds are resolved through reg.
//
// The currently held branches are discarded (and released, if owned) before
// the loaded ones are installed. If reading or rebuilding fails the layer is
// left unchanged.
func (m *MultiplyMerge) Load(r io.Reader, reg *Registry, opts serialization.ReaderOptions) error {
	file, err := serialization.Decode(r, opts)
	if err != nil {
		return errors.WithMessage(err, "load")
	}
	return m.install(file, reg)
}

// LoadFile is Load for a .mmrg file at path.
func (m *MultiplyMerge) LoadFile(path string, reg *Registry, opts serialization.ReaderOptions) error {
	file, err := serialization.DecodeFile(path, opts)
	if err != nil {
		return errors.WithMessage(err, "load")
	}
	return m.install(file, reg)
}

// encode builds the header and tensor list for the layer.
func (m *MultiplyMerge) encode(metadata map[string]string) (serialization.Header, []serialization.Tensor, error) {
	if m.state == Released {
		return serialization.Header{}, nil, ErrReleased
	}

	header := serialization.Header{
		LayerType: layerType,
		Model:     m.model,
		Run:       m.run,
		OwnsLayer: m.network.Owning(),
		Branches:  make([]serialization.BranchMeta, 0, m.network.Len()),
		Metadata:  metadata,
	}
	var tensors []serialization.Tensor

	err := m.network.Each(func(i int, b Branch) error {
		p, ok := b.(Persistable)
		if !ok {
			return errors.Wrapf(ErrNotPersistable, "branch %d (%T)", i, b)
		}

		stateDict := p.StateDict()
		names := make([]string, 0, len(stateDict))
		for name := range stateDict {
			names = append(names, name)
		}
		sort.Strings(names)

		record := serialization.BranchMeta{Kind: p.Kind(), Tensors: make([]string, 0, len(names))}
		prefix := serialization.BranchTensorPrefix(i)
		for _, name := range names {
			full := prefix + name
			record.Tensors = append(record.Tensors, full)
			tensors = append(tensors, serialization.Tensor{Name: full, Value: stateDict[name]})
		}
		header.Branches = append(header.Branches, record)
		return nil
	})
	if err != nil {
		return serialization.Header{}, nil, errors.WithMessage(err, "save")
	}

	if m.weights != nil && !m.weights.IsEmpty() {
		header.Weights = weightsName
		tensors = append(tensors, serialization.Tensor{Name: weightsName, Value: m.weights})
	}

	return header, tensors, nil
}

// install rebuilds the branches described by file and swaps them in.
func (m *MultiplyMerge) install(file *serialization.File, reg *Registry) error {
	if m.state == Released {
		return ErrReleased
	}
	if reg == nil {
		return errors.Wrap(ErrInvalidConfiguration, "load: nil registry")
	}
	if file.Header.LayerType != layerType {
		return errors.Wrapf(ErrInvalidConfiguration, "load: layer type %q", file.Header.LayerType)
	}

	// Built as owning so a failure part way releases what was created.
	loaded := NewCollection(true)
	for i, meta := range file.Header.Branches {
		b, err := newPersistedBranch(reg, meta.Kind, file.BranchTensors(i))
		if err != nil {
			loaded.Clear()
			return errors.WithMessagef(err, "load: branch %d", i)
		}
		if err := loaded.Append(b); err != nil {
			loaded.Clear()
			return errors.WithMessagef(err, "load: branch %d", i)
		}
	}

	var weights *mat.Dense
	if file.Header.Weights != "" {
		weights = file.Tensors[file.Header.Weights]
	}

	m.network.Clear()
	m.network = &Collection{branches: loaded.Detach(), owning: file.Header.OwnsLayer}
	m.model = file.Header.Model
	m.run = file.Header.Run
	m.weights = weights
	m.state = Configured
	return nil
}

// newPersistedBranch creates a branch of kind and restores its state.
func newPersistedBranch(reg *Registry, kind string, stateDict map[string]*mat.Dense) (Branch, error) {
	b, err := reg.New(kind)
	if err != nil {
		return nil, err
	}
	p, ok := b.(Persistable)
	if !ok {
		b.Release()
		return nil, errors.Wrapf(ErrNotPersistable, "kind %q", kind)
	}
	if p.Kind() != kind {
		b.Release()
		return nil, errors.Wrapf(ErrInvalidConfiguration, "factory for %q built %q", kind, p.Kind())
	}
	if err := p.LoadStateDict(stateDict); err != nil {
		b.Release()
		return nil, errors.WithMessagef(err, "kind %q", kind)
	}
	return b, nil
}
