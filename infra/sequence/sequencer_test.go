package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencer(t *testing.T) {
	s := New(0)
	assert.Equal(t, uint64(0), s.Current())
	assert.Equal(t, uint64(1), s.Next())
	assert.Equal(t, uint64(2), s.Next())
	assert.Equal(t, uint64(2), s.Current())

	s.Reset(100)
	assert.Equal(t, uint64(100), s.Current())
	assert.Equal(t, uint64(101), s.Next())
}

func TestSequencerConcurrent(t *testing.T) {
	s := New(0)
	var wg sync.WaitGroup
	seen := make([]uint64, 64)

	for i := range seen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = s.Next()
		}(i)
	}
	wg.Wait()

	unique := make(map[uint64]struct{}, len(seen))
	for _, v := range seen {
		unique[v] = struct{}{}
	}
	assert.Len(t, unique, len(seen))
	assert.Equal(t, uint64(len(seen)), s.Current())
}
