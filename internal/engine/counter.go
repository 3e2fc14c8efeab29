package engine

import "sync/atomic"

// Counter is a monotonic count of operation applications.
//
// It is safe for concurrent use. Workers batch their counts and add them
// once per chunk, so the hot loop never touches the shared word.
type Counter struct {
	n atomic.Int64
}

// NewCounter creates a counter starting at 0.
func NewCounter() *Counter {
	return &Counter{}
}

// NewCounterAt creates a counter starting at start.
func NewCounterAt(start int64) *Counter {
	c := &Counter{}
	c.n.Store(start)
	return c
}

// Next increments the counter and returns the new value.
func (c *Counter) Next() int64 {
	return c.n.Add(1)
}

// Add increments the counter by delta and returns the new value.
func (c *Counter) Add(delta int64) int64 {
	return c.n.Add(delta)
}

// Current returns the count without incrementing.
func (c *Counter) Current() int64 {
	return c.n.Load()
}
