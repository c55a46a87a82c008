package accounts

import (
	"hash/fnv"
	"math"
	"sync"
)

// usernameIndex is a bloom filter over registered usernames. A miss means
// the username is free; a hit still needs a lookup.
type usernameIndex struct {
	mu     sync.RWMutex
	bits   []uint64
	size   uint
	hashes uint
}

func newUsernameIndex(expected uint, falsePositiveRate float64) *usernameIndex {
	if expected == 0 {
		expected = 1
	}

	size := uint(math.Ceil(-float64(expected) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if size == 0 {
		size = 64
	}

	hashes := max(uint(math.Round(float64(size)/float64(expected)*math.Ln2)), 1)

	return &usernameIndex{
		bits:   make([]uint64, (size+63)/64),
		size:   size,
		hashes: hashes,
	}
}

func (idx *usernameIndex) positions(username string) []uint {
	a := fnv.New32a()
	_, _ = a.Write([]byte(username))
	h1 := uint(a.Sum32())

	b := fnv.New32()
	_, _ = b.Write([]byte(username))
	h2 := uint(b.Sum32()) | 1

	out := make([]uint, idx.hashes)
	for i := range idx.hashes {
		out[i] = (h1 + i*h2) % idx.size
	}

	return out
}

func (idx *usernameIndex) add(username string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, pos := range idx.positions(username) {
		idx.bits[pos/64] |= 1 << (pos % 64)
	}
}

func (idx *usernameIndex) mayContain(username string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for _, pos := range idx.positions(username) {
		if idx.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}

	return true
}
