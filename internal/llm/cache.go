package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/scrypster/companion/pkg/types"
)

// AnalysisCache memoizes analyses by the SHA-256 of the trimmed memory
// text. Ristretto may drop writes under contention, so a miss only costs
// an extra model call.
type AnalysisCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewAnalysisCache creates a cache holding roughly maxEntries analyses for
// ttl each. A zero ttl keeps entries until evicted.
func NewAnalysisCache(maxEntries int64, ttl time.Duration) (*AnalysisCache, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	// Each entry costs 1, so MaxCost is an entry count.
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}
	return &AnalysisCache{cache: cache, ttl: ttl}, nil
}

// Get returns a copy of the cached analysis for text.
func (c *AnalysisCache) Get(text string) (types.Analysis, bool) {
	if c == nil {
		return types.Analysis{}, false
	}
	v, ok := c.cache.Get(cacheKey(text))
	if !ok {
		return types.Analysis{}, false
	}
	a, ok := v.(types.Analysis)
	if !ok {
		return types.Analysis{}, false
	}
	return a.Clone(), true
}

// Set stores a copy of a. Empty analyses are not cached.
func (c *AnalysisCache) Set(text string, a types.Analysis) {
	if c == nil || a.IsEmpty() {
		return
	}
	c.cache.SetWithTTL(cacheKey(text), a.Clone(), 1, c.ttl)
}

// Wait blocks until buffered writes are applied.
func (c *AnalysisCache) Wait() {
	if c != nil {
		c.cache.Wait()
	}
}

// Close stops the cache's background goroutines.
func (c *AnalysisCache) Close() {
	if c != nil {
		c.cache.Close()
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
