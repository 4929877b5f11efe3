package graph

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator hands out identifiers for history events. Implementations are
// owned by the caller that creates events; there is no process-wide counter.
type IDGenerator interface {
	Next(prefix string) string
}

// ID strategies accepted by NewIDGenerator.
const (
	IDStrategyCounter = "counter"
	IDStrategyUUID    = "uuid"
)

// NewIDGenerator returns a generator for the named strategy. An empty strategy
// selects the counter.
func NewIDGenerator(strategy string) (IDGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", IDStrategyCounter:
		return NewCounter(), nil
	case IDStrategyUUID:
		return UUIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIDStrategy, strategy)
	}
}

// Counter produces "<prefix>_<n>" with a single monotonic n shared across
// prefixes, so IDs are never reused regardless of the prefix.
type Counter struct {
	mu sync.Mutex
	n  int
}

// NewCounter returns a Counter starting at 1.
func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Next(prefix string) string {
	c.mu.Lock()
	c.n++
	n := c.n
	c.mu.Unlock()
	return prefix + "_" + strconv.Itoa(n)
}

// Peek returns the last issued number without advancing the counter.
func (c *Counter) Peek() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// UUIDGenerator produces "<prefix>_<uuid>". It is stateless and safe to copy.
type UUIDGenerator struct{}

func (UUIDGenerator) Next(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
