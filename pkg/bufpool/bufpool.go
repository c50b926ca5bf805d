// Package bufpool provides size-classed byte slice pools for connection I/O.
//
// Every notepad session owns a read buffer for its whole lifetime and
// renders a refresh frame after each appended line. Pooling both keeps the
// per-connection allocation rate flat regardless of how many clients are
// typing at once.
//
// Requests are rounded up to the smallest class that fits. Requests larger
// than the largest class are allocated directly and never pooled.
//
//	buf := bufpool.Get(1024)
//	defer bufpool.Put(buf)
package bufpool

import (
	"bytes"
	"slices"
	"sync"
)

// Default size classes.
const (
	// DefaultReadSize matches the default per-read buffer of a session.
	DefaultReadSize = 1 << 10

	// DefaultFrameSize fits a typical refresh frame.
	DefaultFrameSize = 16 << 10

	// DefaultLargeSize holds large notepad contents.
	DefaultLargeSize = 256 << 10
)

// maxRetainedBuffer is the largest bytes.Buffer capacity PutBuffer keeps.
const maxRetainedBuffer = 1 << 20

type class struct {
	size int
	pool sync.Pool
}

// Pool is a set of sync.Pools, one per size class.
type Pool struct {
	classes []*class
}

// Config lists the size classes of a Pool.
type Config struct {
	// Sizes are the buffer capacities to pool. Zero or negative entries are
	// dropped and duplicates collapsed. An empty list selects the defaults.
	Sizes []int
}

// DefaultConfig returns the default class layout.
func DefaultConfig() Config {
	return Config{Sizes: []int{DefaultReadSize, DefaultFrameSize, DefaultLargeSize}}
}

// NewPool builds a Pool. A nil cfg selects DefaultConfig.
func NewPool(cfg *Config) *Pool {
	var sizes []int
	if cfg != nil {
		for _, s := range cfg.Sizes {
			if s > 0 {
				sizes = append(sizes, s)
			}
		}
	}
	if len(sizes) == 0 {
		sizes = DefaultConfig().Sizes
	}
	slices.Sort(sizes)
	sizes = slices.Compact(sizes)

	p := &Pool{classes: make([]*class, len(sizes))}
	for i, size := range sizes {
		c := &class{size: size}
		c.pool.New = func() any {
			b := make([]byte, c.size)
			return &b
		}
		p.classes[i] = c
	}
	return p
}

// Sizes returns the pooled class capacities in ascending order.
func (p *Pool) Sizes() []int {
	out := make([]int, len(p.classes))
	for i, c := range p.classes {
		out[i] = c.size
	}
	return out
}

// Get returns a slice of length size. Its capacity is the matching class
// size, or exactly size when no class is large enough.
func (p *Pool) Get(size int) []byte {
	if size < 0 {
		size = 0
	}
	for _, c := range p.classes {
		if size <= c.size {
			b := *c.pool.Get().(*[]byte)
			return b[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to its class. Slices whose capacity does not match a
// class exactly are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	capacity := cap(buf)
	for _, c := range p.classes {
		if capacity == c.size {
			full := buf[:capacity]
			c.pool.Put(&full)
			return
		}
	}
}

var globalPool = NewPool(nil)

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Get returns a slice of length size from the shared pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns buf to the shared pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}

// GetBuffer returns an empty bytes.Buffer from the shared pool.
func GetBuffer() *bytes.Buffer {
	b := bufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// PutBuffer returns b to the shared pool. Buffers that grew beyond 1MiB
// are dropped.
func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxRetainedBuffer {
		return
	}
	bufferPool.Put(b)
}
