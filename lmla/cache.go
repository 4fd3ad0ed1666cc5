package lmla

import "github.com/kho/lvrec/lm"

// lruCache holds up to K (LmState, logprob) entries per look-ahead
// node, evicted round-robin rather than by recency: the point is to
// bound memory and re-scan cost, not to model real access locality.
// Nil receivers disable caching so cacheK==0 costs nothing.
type lruCache struct {
	states  []lm.StateId
	weights []lm.Weight
	valid   []bool
	next    int
}

func newLruCache(k int) *lruCache {
	if k <= 0 {
		return nil
	}
	return &lruCache{
		states:  make([]lm.StateId, k),
		weights: make([]lm.Weight, k),
		valid:   make([]bool, k),
	}
}

func (c *lruCache) get(s lm.StateId) (lm.Weight, bool) {
	if c == nil {
		return 0, false
	}
	for i, v := range c.valid {
		if v && c.states[i] == s {
			return c.weights[i], true
		}
	}
	return 0, false
}

func (c *lruCache) put(s lm.StateId, w lm.Weight) {
	if c == nil {
		return
	}
	c.states[c.next] = s
	c.weights[c.next] = w
	c.valid[c.next] = true
	c.next = (c.next + 1) % len(c.states)
}
