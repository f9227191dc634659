package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/multiplymerge/internal/merge"
)

func TestCollection_AppendAndAt(t *testing.T) {
	c := merge.NewCollection(true)
	a := newFixed("a", nil, nil, nil)
	b := newFixed("b", nil, nil, nil)

	require.NoError(t, c.Append(a))
	require.NoError(t, c.Append(b))

	assert.Equal(t, 2, c.Len())
	assert.Same(t, a, c.At(0))
	assert.Same(t, b, c.At(1))
	assert.Panics(t, func() { c.At(2) })
	assert.Panics(t, func() { c.At(-1) })
}

func TestCollection_BranchesIsCopy(t *testing.T) {
	c := merge.NewCollection(false)
	a := newFixed("a", nil, nil, nil)
	require.NoError(t, c.Append(a))

	branches := c.Branches()
	branches[0] = nil

	assert.Same(t, a, c.At(0))
}

func TestCollection_Each(t *testing.T) {
	c := merge.NewCollection(false)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, c.Append(newFixed(name, nil, nil, nil)))
	}

	var visited []int
	err := c.Each(func(i int, _ merge.Branch) error {
		visited = append(visited, i)
		if i == 1 {
			return merge.ErrNilTensor
		}
		return nil
	})

	assert.ErrorIs(t, err, merge.ErrNilTensor)
	assert.Equal(t, []int{0, 1}, visited)
}

func TestCollection_ClearOwning(t *testing.T) {
	c := merge.NewCollection(true)
	a := newFixed("a", nil, nil, nil)
	b := newFixed("b", nil, nil, nil)
	require.NoError(t, c.Append(a))
	require.NoError(t, c.Append(b))

	c.Clear()
	c.Clear()

	assert.Zero(t, c.Len())
	assert.Equal(t, 1, a.releases)
	assert.Equal(t, 1, b.releases)
}

func TestCollection_ClearBorrowing(t *testing.T) {
	c := merge.NewCollection(false)
	a := newFixed("a", nil, nil, nil)
	require.NoError(t, c.Append(a))
	require.NoError(t, c.Append(a))

	c.Clear()

	assert.Zero(t, c.Len())
	assert.Zero(t, a.releases)
}

func TestCollection_ClearExcept(t *testing.T) {
	a := newFixed("a", nil, nil, nil)
	b := newFixed("b", nil, nil, nil)

	owning := merge.NewCollection(true)
	require.NoError(t, owning.Append(a))
	require.NoError(t, owning.Append(b))

	keep := merge.NewCollection(false)
	require.NoError(t, keep.Append(a))

	owning.ClearExcept(keep)

	assert.Zero(t, owning.Len())
	assert.Zero(t, a.releases)
	assert.Equal(t, 1, b.releases)
	assert.Same(t, a, keep.At(0))
}

func TestCollection_Detach(t *testing.T) {
	c := merge.NewCollection(true)
	a := newFixed("a", nil, nil, nil)
	require.NoError(t, c.Append(a))

	detached := c.Detach()
	c.Clear()

	require.Len(t, detached, 1)
	assert.Same(t, a, detached[0])
	assert.Zero(t, a.releases)
}

func TestCollection_DuplicateHandles(t *testing.T) {
	owning := merge.NewCollection(true)
	a := newFixed("a", nil, nil, nil)
	require.NoError(t, owning.Append(a))

	err := owning.Append(a)
	assert.ErrorIs(t, err, merge.ErrDuplicateBranch)
	assert.Contains(t, err.Error(), "index 0")
	assert.Equal(t, 1, owning.Len())

	// Distinct handles with equal contents are fine.
	require.NoError(t, owning.Append(newFixed("a", nil, nil, nil)))
	assert.ErrorIs(t, owning.Append(nil), merge.ErrNilBranch)
}

func TestCollection_Clone(t *testing.T) {
	var clones []*cloneableBranch
	a := &cloneableBranch{fixedBranch: newFixed("a", nil, nil, nil), clones: &clones}

	owning := merge.NewCollection(true)
	require.NoError(t, owning.Append(a))
	cp, err := owning.Clone()
	require.NoError(t, err)
	assert.True(t, cp.Owning())
	require.Len(t, clones, 1)
	assert.Same(t, clones[0], cp.At(0))

	borrowing := merge.NewCollection(false)
	require.NoError(t, borrowing.Append(a))
	shared, err := borrowing.Clone()
	require.NoError(t, err)
	assert.False(t, shared.Owning())
	assert.Same(t, a, shared.At(0))
	assert.Len(t, clones, 1)
}
