package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multiplymerge/internal/branch"
	"github.com/born-ml/multiplymerge/internal/merge"
	"github.com/born-ml/multiplymerge/internal/serialization"
)

func TestDemoLayer(t *testing.T) {
	layer, err := demoLayer()
	require.NoError(t, err)
	defer layer.Release()

	input := mat.NewDense(3, 1, []float64{1, 2, 3})
	var out, g mat.Dense
	require.NoError(t, layer.Forward(input, &out))
	require.NoError(t, layer.Backward(input, mat.NewDense(3, 1, []float64{1, 1, 1}), &g))

	assert.Equal(t, []float64{4, 10, 18}, mat.Col(nil, 0, &out))
	assert.Equal(t, []float64{3, 3, 3}, mat.Col(nil, 0, &g))
}

func TestSaveInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.mmrg")
	require.NoError(t, runSave(path))
	require.NoError(t, runInspect(path))

	loaded := merge.New(false, true)
	defer loaded.Release()
	require.NoError(t, loaded.LoadFile(path, branch.DefaultRegistry(), serialization.DefaultReaderOptions()))
	assert.Equal(t, 2, loaded.Len())

	assert.Error(t, runInspect(filepath.Join(t.TempDir(), "missing.mmrg")))
}

func TestTrain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runTrain(&buf, 300))

	out := buf.String()
	assert.Contains(t, out, "step    1")
	assert.Contains(t, out, "step  300")
	assert.Contains(t, out, "w = ")
}

func TestAddOwned_ReleasesRefusedBranches(t *testing.T) {
	layer := merge.New(false, true)
	kept := branch.NewIdentity()
	require.NoError(t, addOwned(layer, kept))
	layer.Release()
	assert.Equal(t, 1, kept.Releases())

	first, second := branch.NewIdentity(), branch.NewScale(2)
	err := addOwned(layer, first, second)
	assert.ErrorIs(t, err, merge.ErrReleased)
	assert.Equal(t, 1, first.Releases())
	assert.Equal(t, 1, second.Releases())
}
