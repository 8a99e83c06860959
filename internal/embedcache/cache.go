// Package embedcache is the content-addressed, dimension-keyed embedding
// cache spec §4.F names. It repurposes the teacher's chromem-go usage
// (internal/mcp/chromem_searcher.go), which treats chromem-go as a
// queryable vector index, into a pure key-value cache: one collection per
// embedding dimension count, documents addressed by a composite cache key
// instead of chunk identity, queried by GetByID rather than similarity
// search.
package embedcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/philippgille/chromem-go"

	"github.com/codeindex-dev/codeindex/internal/cerr"
)

// Cache is a persistent, content-addressed embedding cache.
type Cache struct {
	db          *chromem.DB
	mu          sync.Mutex
	collections map[int]*chromem.Collection

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens (creating if absent) a persistent chromem-go database rooted
// at dir. Persistence is required by spec §4.F ("Persistent across runs");
// the teacher only ever uses chromem.NewDB() in-memory since its vector
// store is rebuilt from chunk files on every startup, but chromem-go itself
// supports on-disk collections via NewPersistentDB, which this cache relies
// on directly.
func Open(dir string) (*Cache, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, cerr.New("embedcache.Open", cerr.StoreCorrupt, err)
	}
	return &Cache{db: db, collections: map[int]*chromem.Collection{}}, nil
}

// cacheKey is the document ID chromem-go addresses a cached vector by,
// composing the full (content_hash, model_id, model_version, dimensions)
// key spec §3's Embedding entity and §4.F both name — dimensions is folded
// into the collection choice instead of the key string.
func cacheKey(contentHash, modelID, modelVersion string) string {
	return fmt.Sprintf("%s|%s|%s", contentHash, modelID, modelVersion)
}

func (c *Cache) collectionFor(dimensions int) (*chromem.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if col, ok := c.collections[dimensions]; ok {
		return col, nil
	}
	name := fmt.Sprintf("embeddings_%d", dimensions)
	col, err := c.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, cerr.New("embedcache.collectionFor", cerr.StoreCorrupt, err)
	}
	c.collections[dimensions] = col
	return col, nil
}

// Get returns the cached vector for (contentHash, modelID, modelVersion,
// dimensions), and whether it was present.
func (c *Cache) Get(ctx context.Context, contentHash, modelID, modelVersion string, dimensions int) ([]float32, bool, error) {
	col, err := c.collectionFor(dimensions)
	if err != nil {
		return nil, false, err
	}
	doc, err := col.GetByID(ctx, cacheKey(contentHash, modelID, modelVersion))
	if err != nil {
		c.misses.Add(1)
		return nil, false, nil
	}
	if len(doc.Embedding) != dimensions {
		// A dimension mismatch invalidates the cache line per spec §3.
		c.misses.Add(1)
		_ = col.Delete(ctx, nil, nil, cacheKey(contentHash, modelID, modelVersion))
		return nil, false, nil
	}
	c.hits.Add(1)
	return doc.Embedding, true, nil
}

// Set stores vector under (contentHash, modelID, modelVersion, dimensions).
func (c *Cache) Set(ctx context.Context, contentHash, modelID, modelVersion string, dimensions int, vector []float32) error {
	col, err := c.collectionFor(dimensions)
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:        cacheKey(contentHash, modelID, modelVersion),
		Embedding: vector,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return cerr.New("embedcache.Set", cerr.StoreCorrupt, err)
	}
	return nil
}

// InvalidateByDimensions drops the entire collection for a dimension count,
// used when an embedding profile switch changes dimensions (spec §4.E).
func (c *Cache) InvalidateByDimensions(dimensions int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := fmt.Sprintf("embeddings_%d", dimensions)
	if err := c.db.DeleteCollection(name); err != nil {
		return cerr.New("embedcache.InvalidateByDimensions", cerr.StoreCorrupt, err)
	}
	delete(c.collections, dimensions)
	return nil
}

// Clear drops every collection in the cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.db.ListCollections() {
		if err := c.db.DeleteCollection(name); err != nil {
			return cerr.New("embedcache.Clear", cerr.StoreCorrupt, err)
		}
	}
	c.collections = map[int]*chromem.Collection{}
	c.hits.Store(0)
	c.misses.Store(0)
	return nil
}

// Stats summarizes cache effectiveness since process start.
type Stats struct {
	Hits   int64
	Misses int64
}

// Stats returns the running hit/miss counts.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// HitRate returns hits/(hits+misses), or 0 when nothing has been looked up.
func (c *Cache) HitRate() float64 {
	h, m := c.hits.Load(), c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}
