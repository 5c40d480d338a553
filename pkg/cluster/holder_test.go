package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_SwapClosesPrevious(t *testing.T) {
	first, f1 := newRouter(t, servers(2))
	h := NewHolder(first)
	require.Same(t, first, h.Load())

	second, f2 := newRouter(t, servers(3))
	h.Swap(second)

	assert.Same(t, second, h.Load())
	assert.True(t, f1.get("10.0.0.1:6379").closed)
	assert.True(t, f1.get("10.0.0.2:6379").closed)
	assert.False(t, f2.get("10.0.0.1:6379").closed)

	// повторная установка того же роутера его не закрывает
	h.Swap(second)
	assert.False(t, f2.get("10.0.0.1:6379").closed)
}

func TestHolder_Empty(t *testing.T) {
	h := NewHolder(nil)
	assert.Nil(t, h.Load())

	r, _ := newRouter(t, servers(1))
	h.Swap(r)
	assert.Same(t, r, h.Load())
}
