package model

// Counter counts occurrences per key and remembers the order in which keys
// were first seen. It is not safe for concurrent use; each aggregation owns
// its counters exclusively.
type Counter[K comparable] struct {
	counts map[K]uint64
	order  []K
}

// NewCounter returns an empty counter.
func NewCounter[K comparable]() *Counter[K] {
	return &Counter[K]{counts: make(map[K]uint64)}
}

// Inc adds one to key.
func (c *Counter[K]) Inc(key K) {
	c.Add(key, 1)
}

// Add adds n to key.
func (c *Counter[K]) Add(key K, n uint64) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// Get returns the count for key.
func (c *Counter[K]) Get(key K) uint64 {
	return c.counts[key]
}

// Len returns the number of distinct keys.
func (c *Counter[K]) Len() int {
	return len(c.order)
}

// Keys returns the keys in first-seen order.
func (c *Counter[K]) Keys() []K {
	keys := make([]K, len(c.order))
	copy(keys, c.order)
	return keys
}

// Each calls fn for every key in first-seen order.
func (c *Counter[K]) Each(fn func(key K, count uint64)) {
	for _, k := range c.order {
		fn(k, c.counts[k])
	}
}

// Total returns the sum of all counts.
func (c *Counter[K]) Total() uint64 {
	var n uint64
	for _, v := range c.counts {
		n += v
	}
	return n
}
