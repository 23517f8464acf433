// Package parallel splits index loops across goroutines for the compute
// kernels. The zero Config runs everything on the calling goroutine.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Worker goroutines; 0 means one per CPU.
	MinChunkSize int  // Minimum items per goroutine.
}

// DefaultConfig enables parallelism on multi-core machines. Kernels iterate
// over batch elements and groups, so chunks may be as small as one item.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

func (c Config) workers() int {
	if c.NumWorkers > 0 {
		return c.NumWorkers
	}
	return runtime.NumCPU()
}

// For executes f(i) for i in [0, n). It runs sequentially when cfg is
// disabled or n is smaller than two chunks.
func For(n int, f func(i int), cfg Config) {
	chunk := max(cfg.MinChunkSize, 1)
	if !cfg.Enabled || n < 2*chunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk = max((n+cfg.workers()-1)/cfg.workers(), chunk)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
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

// ForBatch executes f(b, g) for every pair in [0, batch) x [0, groups).
func ForBatch(batch, groups int, f func(b, g int), cfg Config) {
	if groups <= 0 {
		return
	}
	For(batch*groups, func(k int) {
		f(k/groups, k%groups)
	}, cfg)
}
