package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	configs := map[string]Config{
		"default":    DefaultConfig(),
		"sequential": Sequential(),
		"forced":     {Enabled: true, NumWorkers: 4, MinChunkSize: 1},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			const n = 5000
			var counter int64
			seen := make([]int32, n)

			For(n, func(i int) {
				atomic.AddInt64(&counter, 1)
				atomic.AddInt32(&seen[i], 1)
			}, cfg)

			assert.Equal(t, int64(n), counter)
			for i, v := range seen {
				if v != 1 {
					t.Fatalf("index %d visited %d times", i, v)
				}
			}
		})
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(_ int) { called = true }, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	assert.False(t, called)
}

func TestMap(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	dst := make([]float64, len(src))

	Map(dst, src, func(x float64) float64 { return x * x }, Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1})
	assert.Equal(t, []float64{1, 4, 9, 16}, dst)

	// In place.
	Map(src, src, func(x float64) float64 { return -x }, Sequential())
	assert.Equal(t, []float64{-1, -2, -3, -4}, src)

	assert.Panics(t, func() { Map(make([]float64, 1), src, nil, Sequential()) })
}

func TestZip(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	dst := make([]float64, 3)

	Zip(dst, a, b, func(x, y float64) float64 { return x * y }, DefaultConfig())
	assert.Equal(t, []float64{4, 10, 18}, dst)

	assert.Panics(t, func() { Zip(dst, a, b[:2], nil, Sequential()) })
}
