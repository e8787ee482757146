package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestTTL_Expiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[string, int](time.Minute, clk.Now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clk.Advance(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry expires exactly at ttl")
	assert.Equal(t, 0, c.Len())
}

func TestTTL_Purge(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTL[string, string](time.Second, clk.Now)

	c.Set("a", "x")
	clk.Advance(2 * time.Second)
	c.Set("b", "y")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Purge())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestTTL_NoExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTL[int, int](0, clk.Now)
	c.Set(1, 1)
	clk.Advance(24 * time.Hour)
	_, ok := c.Get(1)
	assert.True(t, ok)
}

func TestTTL_Concurrent(t *testing.T) {
	c := NewTTL[int, int](time.Hour, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(j, i)
				c.Get(j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, c.Len())
}
