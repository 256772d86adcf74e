package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSize(t *testing.T) {
	_, err := New[string, int](0)
	assert.Error(t, err)
}

func TestGetAdd(t *testing.T) {
	c, err := New[string, int](4)
	require.NoError(t, err)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Add("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, st.Entries)
}

func TestEviction(t *testing.T) {
	c, err := New[int, int](2)
	require.NoError(t, err)
	c.Add(1, 1)
	c.Add(2, 2)
	c.Add(3, 3)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok, "least recently used entry should be evicted")
}

func TestGetOrCompute(t *testing.T) {
	c, err := New[string, int](4)
	require.NoError(t, err)

	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	v, hit, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)

	v, hit, err = c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c, err := New[string, int](4)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, _, err = c.GetOrCompute("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestInvalidate(t *testing.T) {
	type key struct {
		state string
		year  int
	}
	c, err := New[key, int](10)
	require.NoError(t, err)
	c.Add(key{"IL", 2015}, 1)
	c.Add(key{"IL", 2016}, 2)
	c.Add(key{"IA", 2015}, 3)

	n := c.Invalidate(func(k key) bool { return k.state == "IL" })
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(key{"IA", 2015})
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c, err := New[int, int](64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				_, _, _ = c.GetOrCompute(j%16, func() (int, error) { return i, nil })
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, c.Len())
}
