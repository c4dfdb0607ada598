package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_MultipleConnectionsPerUser(t *testing.T) {
	r := NewRegistry()
	a := newClient(newFakeConn(), 7)
	b := newClient(newFakeConn(), 7)
	c := newClient(newFakeConn(), 9)

	r.Register(a, 7)
	r.Register(b, 7)
	r.Register(c, 9)

	assert.Equal(t, 3, r.Count())
	assert.Equal(t, map[int]int{7: 2, 9: 1}, r.CountByUser())
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := newClient(newFakeConn(), 1)
	r.Register(a, 1)

	assert.True(t, r.Unregister(a))
	assert.False(t, r.Unregister(a))
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.CountByUser())
}

func TestRegistry_SnapshotExcludes(t *testing.T) {
	r := NewRegistry()
	a := newClient(newFakeConn(), 1)
	b := newClient(newFakeConn(), 1)
	r.Register(a, 1)
	r.Register(b, 1)

	assert.ElementsMatch(t, []*Client{a, b}, r.Snapshot(nil))
	assert.Equal(t, []*Client{b}, r.Snapshot(a))
}

func TestRegistry_ReRegisterMovesUser(t *testing.T) {
	r := NewRegistry()
	a := newClient(newFakeConn(), 1)
	r.Register(a, 1)
	r.Register(a, 2)

	assert.Equal(t, 1, r.Count())
	assert.Equal(t, map[int]int{2: 1}, r.CountByUser())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newClient(newFakeConn(), i%5)
			r.Register(c, i%5)
			_ = r.Snapshot(nil)
			if i%2 == 0 {
				r.Unregister(c)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.Count())
	total := 0
	for _, n := range r.CountByUser() {
		total += n
	}
	assert.Equal(t, 25, total)
}
