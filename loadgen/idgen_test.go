package loadgen_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/loadgen"
)

func Test_IDGenerator_StartsAtZeroAndCounts(t *testing.T) {
	ids := loadgen.NewIDGenerator()

	for want := range 3 {
		id, err := ids.Next()
		require.NoError(t, err)
		assert.Equal(t, loadgen.RecordID(want), id)
	}
	assert.Equal(t, uint64(3), ids.Issued())
}

func Test_IDGenerator_FailsOnceIDSpaceIsExhausted(t *testing.T) {
	ids := loadgen.NewIDGeneratorAt(math.MaxUint32)

	last, err := ids.Next()
	require.NoError(t, err)
	assert.Equal(t, loadgen.RecordID(math.MaxUint32), last)

	_, err = ids.Next()
	assert.ErrorIs(t, err, loadgen.ErrIDSpaceExhausted)

	_, err = ids.Next()
	assert.ErrorIs(t, err, loadgen.ErrIDSpaceExhausted)
	assert.Equal(t, uint64(math.MaxUint32)+1, ids.Issued())
}

func Test_IDGenerator_ConcurrentCallsReturnDistinctValues(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 1000

	ids := loadgen.NewIDGenerator()
	results := make([][]loadgen.RecordID, goroutines)

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				id, err := ids.Next()
				if err != nil {
					t.Error(err)
					return
				}
				results[g] = append(results[g], id)
			}
		}()
	}
	wg.Wait()

	seen := make(map[loadgen.RecordID]struct{}, goroutines*perGoroutine)
	for _, batch := range results {
		for i, id := range batch {
			if i > 0 {
				require.Greater(t, id, batch[i-1], "ids of one goroutine must increase")
			}
			seen[id] = struct{}{}
		}
	}

	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, uint64(goroutines*perGoroutine), ids.Issued())
}
