// Package cache memoizes fragment digests across duplicate timeline rows.
// l2tcsv repeats the same source event once per MACB timestamp, so identical
// extra blobs recur in bursts; memoizing the parse outcome skips the XML work
// for every repeat.
package cache

import (
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/sketchmill/sketchmill/internal/event"
)

// DefaultCapacity bounds the memo when the caller does not choose one.
const DefaultCapacity = 4096

// fragmentKey is the 128-bit murmur3 hash of a fragment. Keying by hash
// keeps the memo small; a colliding pair of distinct fragments would share a
// digest, which at 128 bits is acceptable for enrichment.
type fragmentKey [2]uint64

// FragmentCache is a bounded, thread-safe memo of fragment digests. Eviction
// is first-in first-out, which matches the bursty adjacency of duplicate
// rows in a sequential timeline.
type FragmentCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[fragmentKey]event.Digest
	order    []fragmentKey
	hits     uint64
	misses   uint64
}

// NewFragmentCache creates a memo holding at most capacity digests.
// Non-positive capacities fall back to DefaultCapacity.
func NewFragmentCache(capacity int) *FragmentCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FragmentCache{
		capacity: capacity,
		entries:  make(map[fragmentKey]event.Digest, capacity),
	}
}

// Digest returns the memoized digest for fragment, computing and retaining
// it on a miss. The result is always identical to event.DigestFragment.
func (c *FragmentCache) Digest(fragment string) event.Digest {
	key := hashFragment(fragment)

	c.mu.Lock()
	if d, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return d
	}
	c.misses++
	c.mu.Unlock()

	// Parse outside the lock so concurrent misses do not serialize on the
	// XML work. A racing duplicate computes the same digest.
	d := event.DigestFragment(fragment)

	c.mu.Lock()
	if _, ok := c.entries[key]; !ok {
		if len(c.entries) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.entries[key] = d
		c.order = append(c.order, key)
	}
	c.mu.Unlock()
	return d
}

// Stats returns the hit and miss counts so far.
func (c *FragmentCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of memoized digests.
func (c *FragmentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func hashFragment(fragment string) fragmentKey {
	h1, h2 := murmur3.Sum128([]byte(fragment))
	return fragmentKey{h1, h2}
}
