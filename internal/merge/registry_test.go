package merge_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/multiplymerge/internal/merge"
)

func TestRegistry_RegisterAndNew(t *testing.T) {
	reg := merge.NewRegistry()
	require.NoError(t, reg.Register("fixed", func() merge.Branch { return newFixed("f", nil, nil, nil) }))

	b, err := reg.New("fixed")
	require.NoError(t, err)
	assert.IsType(t, &fixedBranch{}, b)

	// Each call builds a fresh branch.
	b2, err := reg.New("fixed")
	require.NoError(t, err)
	assert.NotSame(t, b, b2)
}

func TestRegistry_Errors(t *testing.T) {
	reg := merge.NewRegistry()
	factory := func() merge.Branch { return newFixed("f", nil, nil, nil) }

	assert.ErrorIs(t, reg.Register("", factory), merge.ErrInvalidConfiguration)
	assert.ErrorIs(t, reg.Register("x", nil), merge.ErrInvalidConfiguration)

	require.NoError(t, reg.Register("x", factory))
	assert.ErrorIs(t, reg.Register("x", factory), merge.ErrDuplicateKind)
	assert.Panics(t, func() { reg.MustRegister("x", factory) })

	_, err := reg.New("missing")
	assert.ErrorIs(t, err, merge.ErrUnknownKind)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestRegistry_KindsSorted(t *testing.T) {
	reg := merge.NewRegistry()
	factory := func() merge.Branch { return newFixed("f", nil, nil, nil) }
	for _, kind := range []string{"sigmoid", "identity", "linear"} {
		reg.MustRegister(kind, factory)
	}

	assert.Equal(t, []string{"identity", "linear", "sigmoid"}, reg.Kinds())
	assert.Empty(t, merge.NewRegistry().Kinds())
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	reg := merge.NewRegistry()
	reg.MustRegister("fixed", func() merge.Branch { return newFixed("f", nil, nil, nil) })

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.New("fixed")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
