package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	var counter int64
	For(1000, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, DefaultConfig())

	assert.Equal(t, int64(1000), counter)
}

func TestFor_ZeroConfigIsSequential(t *testing.T) {
	var order []int
	For(5, func(i int) {
		order = append(order, i)
	}, Config{})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFor_ZeroWorkers(t *testing.T) {
	var counter int64
	For(64, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, Config{Enabled: true})

	assert.Equal(t, int64(64), counter)
}

func TestForBatch(t *testing.T) {
	batch, groups := 4, 8
	var hits [4][8]int32

	ForBatch(batch, groups, func(b, g int) {
		atomic.AddInt32(&hits[b][g], 1)
	}, Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1})

	for b := 0; b < batch; b++ {
		for g := 0; g < groups; g++ {
			assert.Equal(t, int32(1), hits[b][g], "pair (%d, %d)", b, g)
		}
	}
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, Config{})
		}
	})
}
