package bibdb

import (
	"context"

	"github.com/FocuswithJustin/citesync/core/cache"
)

// CachedDatabase memoises lookups of another database, misses included.
type CachedDatabase struct {
	inner Database
	memo  *cache.Memo[string, *Entry]
}

// NewCachedDatabase wraps db with an LRU cache holding up to size keys.
func NewCachedDatabase(db Database, size int) *CachedDatabase {
	cfg := cache.DefaultConfig()
	cfg.MaxSize = size
	return &CachedDatabase{
		inner: db,
		memo:  cache.NewMemo[string, *Entry](cfg, db.Lookup),
	}
}

// Name implements Database.
func (c *CachedDatabase) Name() string { return c.inner.Name() }

// Lookup implements Database. Errors from the wrapped database are not cached.
func (c *CachedDatabase) Lookup(ctx context.Context, key string) (*Entry, bool, error) {
	return c.memo.Get(ctx, key)
}

// Stats returns cache statistics.
func (c *CachedDatabase) Stats() cache.Stats {
	return c.memo.Stats()
}
