package orderbook

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexPutGetRemove(t *testing.T) {
	idx := NewIndex[int64, string]()

	assert.Equal(t, 0, idx.Size(math.MaxInt))
	assert.Equal(t, "", idx.Get(5))

	idx.Put(5, "a")
	idx.Put(3, "b")
	idx.Put(9, "c")
	idx.Put(5, "a2") // overwrite

	assert.Equal(t, 3, idx.Size(math.MaxInt))
	assert.Equal(t, "a2", idx.Get(5))
	assert.Equal(t, "b", idx.Get(3))

	assert.True(t, idx.Remove(3))
	assert.False(t, idx.Remove(3))
	assert.Equal(t, "", idx.Get(3))
	assert.Equal(t, 2, idx.Size(math.MaxInt))

	require.NoError(t, idx.Validate())
}

func TestIndexNeighbors(t *testing.T) {
	idx := NewIndex[int64, int]()
	for _, k := range []int64{10, 20, 30, 40} {
		idx.Put(k, int(k)*100)
	}

	assert.Equal(t, 1000, idx.LowerValue(15))
	assert.Equal(t, 1000, idx.LowerValue(20))
	assert.Equal(t, 0, idx.LowerValue(10))

	assert.Equal(t, 3000, idx.HigherValue(25))
	assert.Equal(t, 3000, idx.HigherValue(20))
	assert.Equal(t, 0, idx.HigherValue(40))
}

func TestIndexTraversal(t *testing.T) {
	idx := NewIndex[int64, int]()
	keys := []int64{7, 1, 9, 4, 2}
	for _, k := range keys {
		idx.Put(k, int(k))
	}

	var asc []int64
	idx.Ascend(math.MaxInt, func(k int64, _ int) bool {
		asc = append(asc, k)
		return true
	})
	assert.Equal(t, []int64{1, 2, 4, 7, 9}, asc)

	var desc []int64
	idx.Descend(2, func(k int64, _ int) bool {
		desc = append(desc, k)
		return true
	})
	assert.Equal(t, []int64{9, 7}, desc)

	var stopped []int64
	idx.Ascend(math.MaxInt, func(k int64, _ int) bool {
		stopped = append(stopped, k)
		return k < 4
	})
	assert.Equal(t, []int64{1, 2, 4}, stopped)
}

func TestIndexRemoveSweepKeepsShape(t *testing.T) {
	// Removing every key in both directions drives the delete fixup
	// through its left and right branches on each sweep.
	for name, order := range map[string]func(int) int64{
		"ascending":  func(i int) int64 { return int64(i) },
		"descending": func(i int) int64 { return int64(127 - i) },
	} {
		t.Run(name, func(t *testing.T) {
			idx := NewIndex[int64, int]()
			for k := int64(0); k < 128; k++ {
				idx.Put(k, int(k))
			}
			for i := 0; i < 128; i++ {
				require.True(t, idx.Remove(order(i)))
				require.NoError(t, idx.Validate(), "after removing %d", order(i))
			}
			assert.Equal(t, 0, idx.Size(math.MaxInt))
		})
	}
}

func TestIndexRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	idx := NewIndex[int64, int64]()
	ref := map[int64]int64{}

	for i := 0; i < 5000; i++ {
		k := int64(rng.Intn(500))
		switch rng.Intn(3) {
		case 0, 1:
			idx.Put(k, k)
			ref[k] = k
		case 2:
			removed := idx.Remove(k)
			_, want := ref[k]
			require.Equal(t, want, removed, "remove %d", k)
			delete(ref, k)
		}
	}
	require.NoError(t, idx.Validate())
	require.Equal(t, len(ref), idx.Size(math.MaxInt))

	want := make([]int64, 0, len(ref))
	for k := range ref {
		want = append(want, k)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	var got []int64
	idx.Ascend(math.MaxInt, func(k int64, _ int64) bool {
		got = append(got, k)
		return true
	})
	assert.Equal(t, want, got)
}
