package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	c := New(time.Minute, 0)
	c.Set("key", "value")

	v, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestGetMissing(t *testing.T) {
	c := New(time.Minute, 0)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestExpiredEntryIsGone(t *testing.T) {
	c := New(time.Minute, 0)
	c.SetWithExpiration("key", "value", time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestDeleteAndFlush(t *testing.T) {
	c := New(time.Minute, 0)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Count())

	c.Flush()
	assert.Zero(t, c.Count())
}
