// Package parallel provides chunked parallel loops for elementwise kernels.
//
// Every index is processed exactly once and independently of the others, so
// results do not depend on scheduling.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1024,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Map writes fn(src[i]) into dst[i] for every i. dst and src may alias.
func Map(dst, src []float64, fn func(float64) float64, cfg Config) {
	if len(dst) != len(src) {
		panic("parallel.Map: length mismatch")
	}
	For(len(src), func(i int) {
		dst[i] = fn(src[i])
	}, cfg)
}

// Zip writes fn(a[i], b[i]) into dst[i] for every i. dst may alias a or b.
func Zip(dst, a, b []float64, fn func(x, y float64) float64, cfg Config) {
	if len(dst) != len(a) || len(a) != len(b) {
		panic("parallel.Zip: length mismatch")
	}
	For(len(a), func(i int) {
		dst[i] = fn(a[i], b[i])
	}, cfg)
}
