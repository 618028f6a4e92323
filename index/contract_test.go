package index

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexUnderTest interface {
	Index
	Inspector
}

// flip returns fp with its lowest n bits inverted, i.e. at distance n.
func flip(fp core.Fingerprint, n int) core.Fingerprint {
	if n == 64 {
		return ^fp
	}
	return fp ^ core.Fingerprint(uint64(1)<<n-1)
}

func recordID(v int64) *core.RecordID {
	r := core.RecordID(v)
	return &r
}

// runContract exercises the behaviour every Index implementation shares.
func runContract(t *testing.T, open func(t *testing.T) indexUnderTest) {
	ctx := context.Background()
	const base = core.Fingerprint(0xa5a5_0f0f_3c3c_9696)

	t.Run("EmptyPartition", func(t *testing.T) {
		idx := open(t)
		m, err := idx.QueryNearest(ctx, 1, base, 64, nil)
		require.NoError(t, err)
		assert.Nil(t, m)

		_, ok, err := idx.Label(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ExactMatch", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Insert(ctx, 1, "room", 1, base))

		m, err := idx.QueryNearest(ctx, 1, base, 10, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.Match{Record: 1, Distance: 0}, *m)
	})

	t.Run("SmallestDistanceWins", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Insert(ctx, 1, "room", 1, flip(base, 5)))
		require.NoError(t, idx.Insert(ctx, 1, "room", 2, flip(base, 2)))
		require.NoError(t, idx.Insert(ctx, 1, "room", 3, flip(base, 9)))

		m, err := idx.QueryNearest(ctx, 1, base, 64, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.Match{Record: 2, Distance: 2}, *m)
	})

	t.Run("TieBreakSmallestRecord", func(t *testing.T) {
		idx := open(t)
		// Three fingerprints at distance 1 from base, inserted out of id order.
		require.NoError(t, idx.Insert(ctx, 1, "room", 5, base^1))
		require.NoError(t, idx.Insert(ctx, 1, "room", 9, base^2))
		require.NoError(t, idx.Insert(ctx, 1, "room", 3, base^4))
		require.NoError(t, idx.Insert(ctx, 1, "room", 4, flip(base, 3)))

		for i := 0; i < 3; i++ {
			m, err := idx.QueryNearest(ctx, 1, base, 64, nil)
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.Equal(t, core.Match{Record: 3, Distance: 1}, *m)
		}
	})

	t.Run("Threshold", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Insert(ctx, 1, "room", 1, flip(base, 12)))

		m, err := idx.QueryNearest(ctx, 1, base, 11, nil)
		require.NoError(t, err)
		assert.Nil(t, m)

		m, err = idx.QueryNearest(ctx, 1, base, 12, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.Match{Record: 1, Distance: 12}, *m)

		m, err = idx.QueryNearest(ctx, 1, base, 0, nil)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("ThresholdMonotonic", func(t *testing.T) {
		idx := open(t)
		rng := rand.New(rand.NewSource(99))
		for i := 1; i <= 40; i++ {
			require.NoError(t, idx.Insert(ctx, 1, "room", core.RecordID(i), core.Fingerprint(rng.Uint64())))
		}

		for q := 0; q < 10; q++ {
			query := core.Fingerprint(rng.Uint64())
			var prev *core.Match
			for th := 0; th <= 64; th++ {
				m, err := idx.QueryNearest(ctx, 1, query, th, nil)
				require.NoError(t, err)
				if prev != nil {
					require.NotNil(t, m, "threshold %d lost a match", th)
					assert.LessOrEqual(t, m.Distance, prev.Distance)
				}
				if m != nil {
					assert.LessOrEqual(t, m.Distance, th)
					prev = m
				}
			}
			require.NotNil(t, prev, "threshold 64 must match any record")
		}
	})

	t.Run("Exclusion", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Insert(ctx, 1, "room", 1, base))
		require.NoError(t, idx.Insert(ctx, 1, "room", 2, flip(base, 7)))

		m, err := idx.QueryNearest(ctx, 1, base, 64, recordID(1))
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.Match{Record: 2, Distance: 7}, *m)

		m, err = idx.QueryNearest(ctx, 1, base, 5, recordID(1))
		require.NoError(t, err)
		assert.Nil(t, m)

		m, err = idx.QueryNearest(ctx, 1, base, 64, recordID(42))
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.RecordID(1), m.Record)
	})

	t.Run("ExcludeOnlyRecord", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Insert(ctx, 1, "room", 1, base))

		m, err := idx.QueryNearest(ctx, 1, base, 64, recordID(1))
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("PartitionIsolation", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Insert(ctx, 100, "a", 1, base))

		m, err := idx.QueryNearest(ctx, 200, base, 64, nil)
		require.NoError(t, err)
		assert.Nil(t, m)

		// Record ids are only unique within a partition.
		require.NoError(t, idx.Insert(ctx, 200, "b", 1, ^base))

		m, err = idx.QueryNearest(ctx, 100, base, 64, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.Match{Record: 1, Distance: 0}, *m)

		m, err = idx.QueryNearest(ctx, 200, base, 64, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.Match{Record: 1, Distance: 64}, *m)
	})

	t.Run("DuplicateRecord", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Insert(ctx, 1, "before", 1, base))

		err := idx.Insert(ctx, 1, "after", 1, ^base)
		assert.ErrorIs(t, err, core.ErrDuplicateRecord)
		assert.NotErrorIs(t, err, core.ErrStoreUnavailable)

		// The failed insert must not leave its label or fingerprint behind.
		label, ok, err := idx.Label(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "before", label)

		n, err := idx.Count(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		m, err := idx.QueryNearest(ctx, 1, base, 0, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.RecordID(1), m.Record)
	})

	t.Run("LabelLatestWins", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Insert(ctx, 1, "first", 1, base))
		require.NoError(t, idx.Insert(ctx, 1, "second", 2, ^base))

		label, ok, err := idx.Label(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", label)

		n, err := idx.Count(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("InvalidThreshold", func(t *testing.T) {
		idx := open(t)
		for _, th := range []int{-1, 65, 1000} {
			_, err := idx.QueryNearest(ctx, 1, base, th, nil)
			assert.ErrorIs(t, err, core.ErrInvalidThreshold)
		}
	})

	t.Run("SignedValues", func(t *testing.T) {
		idx := open(t)
		high := core.Fingerprint(0xffff_0000_0000_0001)
		require.NoError(t, idx.Insert(ctx, -5, "negative", -10, high))
		require.NoError(t, idx.Insert(ctx, -5, "negative", 10, flip(high, 1)))

		m, err := idx.QueryNearest(ctx, -5, high, 0, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.Match{Record: -10, Distance: 0}, *m)

		m, err = idx.QueryNearest(ctx, -5, flip(high, 1), 64, nil)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, core.Match{Record: 10, Distance: 0}, *m)
	})

	t.Run("ConcurrentInsertSameRecord", func(t *testing.T) {
		idx := open(t)
		const workers = 4

		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = idx.Insert(ctx, 7, "race", 1, base)
			}(i)
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, core.ErrDuplicateRecord)
		}
		assert.Equal(t, 1, ok)

		n, err := idx.Count(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
