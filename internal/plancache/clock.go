package plancache

// clock is a CLOCK (second-chance) replacer over slot ids [0..capacity).
// Every tracked slot is a candidate; a touched slot survives one sweep.
type clock struct {
	ref     []bool
	present []bool
	hand    int
	size    int
}

func newClock(capacity int) *clock {
	return &clock{
		ref:     make([]bool, capacity),
		present: make([]bool, capacity),
	}
}

func (c *clock) touch(id int) {
	if !c.present[id] {
		c.present[id] = true
		c.size++
	}
	c.ref[id] = true
}

// evict picks a victim and stops tracking it.
func (c *clock) evict() (int, bool) {
	n := len(c.ref)
	if c.size == 0 {
		return -1, false
	}
	// two sweeps clear every ref bit
	for range 2 * n {
		idx := c.hand
		c.hand = (c.hand + 1) % n
		if !c.present[idx] {
			continue
		}
		if c.ref[idx] {
			c.ref[idx] = false
			continue
		}
		c.present[idx] = false
		c.size--
		return idx, true
	}
	return -1, false
}

func (c *clock) reset() {
	clear(c.ref)
	clear(c.present)
	c.hand, c.size = 0, 0
}
