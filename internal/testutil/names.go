package testutil

import (
	"fmt"
	"sync"
)

// SequenceNames generates predictable names: prefix_1, prefix_2, ...
//
// It stands in for the uuid-based generators used for temp tables and
// snapshot ids, so generated SQL and snapshot headers can be compared against
// golden files.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceNames struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceNames creates a generator. An empty prefix uses "tmp".
func NewSequenceNames(prefix string) *SequenceNames {
	if prefix == "" {
		prefix = "tmp"
	}
	return &SequenceNames{prefix: prefix}
}

// Generate returns the next name.
func (g *SequenceNames) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s_%d", g.prefix, g.n)
}
