// Package pool recycles fixed-size byte blocks used while building records.
// It is an optimization layer: every Get succeeds, falling back to an ordinary
// allocation once a pool reaches its ceiling.
package pool

import (
	"errors"
	"sync"
)

const (
	DefaultInitialBlocks = 10
	DefaultMaxBlocks     = 1000
)

var (
	// ErrNotOwned is returned by Put for a block the pool did not create,
	// including blocks handed out as fallback allocations
	ErrNotOwned = errors.New("pool: block not owned by this pool")
	// ErrDoubleFree is returned by Put for a block that is already free
	ErrDoubleFree = errors.New("pool: block already returned")
)

// BlockPoolStats is a snapshot of pool counters
type BlockPoolStats struct {
	BlockSize int
	Total     int // blocks created by the pool
	Free      int
	InUse     int
	Hits      uint64 // Get served from the free list
	Misses    uint64 // Get that created a new pool block
	Fallbacks uint64 // Get past the ceiling, served by make
}

// BlockPool is a free list of equally sized blocks with a creation ceiling
type BlockPool struct {
	mu        sync.Mutex
	blockSize int
	maxBlocks int
	free      [][]byte
	inUse     map[*byte]bool // every pool block; true while handed out

	hits      uint64
	misses    uint64
	fallbacks uint64
}

// NewBlockPool creates a pool of blockSize blocks, eagerly creating initialBlocks.
// maxBlocks <= 0 removes the ceiling.
func NewBlockPool(blockSize, initialBlocks, maxBlocks int) *BlockPool {
	if blockSize <= 0 {
		blockSize = 1
	}
	p := &BlockPool{
		blockSize: blockSize,
		maxBlocks: maxBlocks,
		inUse:     make(map[*byte]bool),
	}
	p.Preallocate(initialBlocks)
	return p
}

// BlockSize returns the size of every block in the pool
func (p *BlockPool) BlockSize() int {
	return p.blockSize
}

// Get returns a block of BlockSize bytes. Contents are unspecified.
func (p *BlockPool) Get() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.inUse[blockKey(b)] = true
		p.hits++
		return b
	}

	if p.atCeiling() {
		p.fallbacks++
		return make([]byte, p.blockSize)
	}

	b := make([]byte, p.blockSize)
	p.inUse[blockKey(b)] = true
	p.misses++
	return b
}

// Put returns a block obtained from Get. The block may be resliced but must
// start at the same address it was handed out with.
func (p *BlockPool) Put(b []byte) error {
	if cap(b) != p.blockSize {
		return ErrNotOwned
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := blockKey(b)
	held, owned := p.inUse[key]
	if !owned {
		return ErrNotOwned
	}
	if !held {
		return ErrDoubleFree
	}

	p.inUse[key] = false
	p.free = append(p.free, b[:p.blockSize])
	return nil
}

// Owns reports whether b was created by this pool
func (p *BlockPool) Owns(b []byte) bool {
	if cap(b) != p.blockSize {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inUse[blockKey(b)]
	return ok
}

// Preallocate adds up to n free blocks without crossing the ceiling and
// returns how many were created
func (p *BlockPool) Preallocate(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	created := 0
	for ; created < n && !p.atCeiling(); created++ {
		b := make([]byte, p.blockSize)
		p.inUse[blockKey(b)] = false
		p.free = append(p.free, b)
	}
	return created
}

// Clear releases every block. Blocks still held by callers become foreign to
// the pool and Put reports ErrNotOwned for them.
func (p *BlockPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.free)
	p.free = p.free[:0]
	p.inUse = make(map[*byte]bool)
}

// Stats returns a snapshot of the pool counters
func (p *BlockPool) Stats() BlockPoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := len(p.inUse)
	return BlockPoolStats{
		BlockSize: p.blockSize,
		Total:     total,
		Free:      len(p.free),
		InUse:     total - len(p.free),
		Hits:      p.hits,
		Misses:    p.misses,
		Fallbacks: p.fallbacks,
	}
}

// atCeiling assumes mu is held
func (p *BlockPool) atCeiling() bool {
	return p.maxBlocks > 0 && len(p.inUse) >= p.maxBlocks
}

// blockKey identifies a block by the address of its first byte
func blockKey(b []byte) *byte {
	return &b[:1][0]
}
