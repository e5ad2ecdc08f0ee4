package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLMap(t *testing.T) {
	m := newTTLMap[int](0)
	now := time.Date(2025, 10, 7, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	assert.True(t, m.putIfAbsent("a", 1, time.Minute))
	assert.False(t, m.putIfAbsent("a", 2, time.Minute), "live entry is kept")
	v, ok := m.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	m.put("b", 3, 10*time.Second)
	now = now.Add(30 * time.Second)
	assert.Equal(t, 2, m.len(), "expired entries linger until read or swept")

	m.sweep()
	assert.Equal(t, 1, m.len())
	_, ok = m.get("b")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	assert.True(t, m.putIfAbsent("a", 4, time.Minute), "expired entry is replaced")

	m.reset()
	assert.Zero(t, m.len())
	m.close()
	m.close()
}
