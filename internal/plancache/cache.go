// Package plancache keeps parsed statements keyed by their text, so a
// repeated SELECT reuses the operators compiled on its first run. Slots are
// recycled with CLOCK replacement.
package plancache

import (
	"sync"

	"github.com/tuannm99/novaquery/internal/metrics"
	"github.com/tuannm99/novaquery/internal/sql/ast"
)

var DefaultCapacity = 128

type entry struct {
	sql  string
	stmt ast.Statement
}

type Cache struct {
	mu    sync.Mutex
	slots []*entry      // len == capacity, nil == free slot
	index map[string]int // sql -> slot
	clock *clock
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		slots: make([]*entry, capacity),
		index: make(map[string]int, capacity),
		clock: newClock(capacity),
	}
}

// Get returns the statement cached for sql. A nil Cache always misses.
func (c *Cache) Get(sql string) (ast.Statement, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[sql]
	if !ok {
		metrics.PlanCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	c.clock.touch(idx)
	metrics.PlanCacheLookups.WithLabelValues("hit").Inc()
	return c.slots[idx].stmt, true
}

// Put caches stmt under sql, evicting a cold entry when full.
func (c *Cache) Put(sql string, stmt ast.Statement) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.index[sql]; ok {
		c.slots[idx].stmt = stmt
		c.clock.touch(idx)
		return
	}

	idx := -1
	for i, e := range c.slots {
		if e == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		victim, ok := c.clock.evict()
		if !ok {
			return
		}
		delete(c.index, c.slots[victim].sql)
		idx = victim
	}

	c.slots[idx] = &entry{sql: sql, stmt: stmt}
	c.index[sql] = idx
	c.clock.touch(idx)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *Cache) Capacity() int {
	if c == nil {
		return 0
	}
	return len(c.slots)
}

// Reset drops every entry.
func (c *Cache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.slots)
	clear(c.index)
	c.clock.reset()
}
