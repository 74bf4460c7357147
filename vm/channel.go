package vm

import "sync"

// Channel is an unbounded FIFO queue of values carried from one machine to
// another. A Pop on an empty channel is a routine condition, reported by the
// ok result rather than an error.
type Channel struct {
	mu     sync.Mutex
	items  []int64
	head   int
	pushed int
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Push appends v to the tail.
func (c *Channel) Push(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, v)
	c.pushed++
}

// Pop removes and returns the head. ok is false if the channel is empty.
func (c *Channel) Pop() (v int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.head == len(c.items) {
		return 0, false
	}
	v = c.items[c.head]
	c.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if c.head > 64 && c.head*2 >= len(c.items) {
		c.items = append(c.items[:0], c.items[c.head:]...)
		c.head = 0
	}
	return v, true
}

// Len returns the number of queued values.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) - c.head
}

// Pushed returns how many values were ever pushed.
func (c *Channel) Pushed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushed
}

// Drain returns a copy of the queued values, oldest first, without removing
// them.
func (c *Channel) Drain() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.items)-c.head)
	copy(out, c.items[c.head:])
	return out
}
