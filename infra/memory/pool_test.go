package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	n int
}

func TestBankReusesObjects(t *testing.T) {
	allocs := 0
	bank := NewBank(func() *widget {
		allocs++
		return &widget{}
	})

	a := bank.Get()
	require.NotNil(t, a)
	assert.Equal(t, 1, allocs)

	a.n = 7
	bank.Put(a)
	assert.Equal(t, 1, bank.Len())

	b := bank.Get()
	assert.Same(t, a, b)
	// No zeroing on checkout; callers overwrite every field.
	assert.Equal(t, 7, b.n)
	assert.Equal(t, 1, allocs)
	assert.Equal(t, 0, bank.Len())

	c := bank.Get()
	assert.NotSame(t, b, c)
	assert.Equal(t, 2, allocs)
}
