package testutil

import (
	"fmt"
	"sync"
)

// SequentialNames generates predictable file names: <prefix>-0001,
// <prefix>-0002 and so on.
//
// Used in place of random upload names so golden traces are stable.
type SequentialNames struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialNames creates a generator. An empty prefix means "upload".
func NewSequentialNames(prefix string) *SequentialNames {
	if prefix == "" {
		prefix = "upload"
	}
	return &SequentialNames{prefix: prefix}
}

// Next returns the next name.
func (g *SequentialNames) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
