package pool

import (
	"math"
	"sort"
	"sync/atomic"
)

const (
	DefaultMinBlockSize  = 64
	DefaultMaxBlockSize  = 4096
	DefaultGrowthFactor  = 2.0
	minimumGrowthFactor  = 1.1
	defaultClassCapacity = 0
)

// MultiPoolStats aggregates the per-class statistics
type MultiPoolStats struct {
	Classes   []BlockPoolStats
	Oversize  uint64 // requests larger than the biggest class
	Total     int
	InUse     int
	Fallbacks uint64
}

// MultiPool serves variable-size requests from BlockPools bucketed by size class
type MultiPool struct {
	classes  []*BlockPool
	oversize atomic.Uint64
}

// NewMultiPool creates size classes minBlockSize, minBlockSize*growth, ...
// capped by maxBlockSize. maxBlocks is the ceiling of each class.
func NewMultiPool(minBlockSize, maxBlockSize int, growth float64, maxBlocks int) *MultiPool {
	if minBlockSize <= 0 {
		minBlockSize = DefaultMinBlockSize
	}
	if maxBlockSize < minBlockSize {
		maxBlockSize = minBlockSize
	}
	if growth < minimumGrowthFactor {
		growth = DefaultGrowthFactor
	}

	mp := &MultiPool{}
	for _, size := range classSizes(minBlockSize, maxBlockSize, growth) {
		mp.classes = append(mp.classes, NewBlockPool(size, defaultClassCapacity, maxBlocks))
	}
	return mp
}

// classSizes lists the block size of every class in increasing order
func classSizes(minSize, maxSize int, growth float64) []int {
	var sizes []int
	size := minSize
	for size < maxSize {
		sizes = append(sizes, size)
		next := int(math.Ceil(float64(size) * growth))
		if next <= size {
			next = size + 1
		}
		size = next
	}
	return append(sizes, maxSize)
}

// Classes returns the block size of every class
func (mp *MultiPool) Classes() []int {
	sizes := make([]int, len(mp.classes))
	for i, c := range mp.classes {
		sizes[i] = c.BlockSize()
	}
	return sizes
}

// MaxBlockSize returns the largest size served from a class
func (mp *MultiPool) MaxBlockSize() int {
	return mp.classes[len(mp.classes)-1].BlockSize()
}

// classFor returns the smallest class holding size bytes, nil if none does
func (mp *MultiPool) classFor(size int) *BlockPool {
	i := sort.Search(len(mp.classes), func(i int) bool {
		return mp.classes[i].BlockSize() >= size
	})
	if i == len(mp.classes) {
		return nil
	}
	return mp.classes[i]
}

// Get returns a slice of length size whose capacity is the class size
func (mp *MultiPool) Get(size int) []byte {
	if size < 0 {
		size = 0
	}
	c := mp.classFor(size)
	if c == nil {
		mp.oversize.Add(1)
		return make([]byte, size)
	}
	return c.Get()[:size]
}

// Put routes b back to the class matching its capacity
func (mp *MultiPool) Put(b []byte) error {
	c := mp.classFor(cap(b))
	if c == nil || c.BlockSize() != cap(b) {
		return ErrNotOwned
	}
	return c.Put(b)
}

// Preallocate eagerly creates n blocks in the class serving size
func (mp *MultiPool) Preallocate(size, n int) int {
	c := mp.classFor(size)
	if c == nil {
		return 0
	}
	return c.Preallocate(n)
}

// Clear releases the memory of every class
func (mp *MultiPool) Clear() {
	for _, c := range mp.classes {
		c.Clear()
	}
}

// Stats returns per-class counters plus totals
func (mp *MultiPool) Stats() MultiPoolStats {
	stats := MultiPoolStats{
		Classes:  make([]BlockPoolStats, 0, len(mp.classes)),
		Oversize: mp.oversize.Load(),
	}
	for _, c := range mp.classes {
		s := c.Stats()
		stats.Classes = append(stats.Classes, s)
		stats.Total += s.Total
		stats.InUse += s.InUse
		stats.Fallbacks += s.Fallbacks
	}
	return stats
}
