package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/codeindex-dev/codeindex/internal/store"
)

// LexicalIndex is the full-text leg of hybrid search, backed by an
// in-memory bleve index over chunk content, generalizing the teacher's
// exactSearcher from a ContextChunk document shape to the chunk fields
// §4.G's lexical leg needs.
type LexicalIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

type lexicalDoc struct {
	Name          string `json:"name"`
	Signature     string `json:"signature"`
	Documentation string `json:"documentation"`
	Content       string `json:"content"`
	Kind          string `json:"kind"`
	Language      string `json:"language"`
	FilePath      string `json:"file_path"`
}

// NewLexicalIndex builds an in-memory bleve index from every chunk
// currently in s.
func NewLexicalIndex(ctx context.Context, s *store.Store) (*LexicalIndex, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}

	entries, err := s.AllChunks()
	if err != nil {
		idx.Close()
		return nil, err
	}

	li := &LexicalIndex{index: idx}
	if err := li.indexAll(ctx, entries); err != nil {
		idx.Close()
		return nil, err
	}
	return li, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"
	text.Store = true
	text.Index = true
	text.IncludeTermVectors = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("signature", text)
	doc.AddFieldMappingsAt("documentation", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("kind", keyword)
	doc.AddFieldMappingsAt("language", keyword)
	doc.AddFieldMappingsAt("file_path", keyword)

	im.DefaultMapping = doc
	return im
}

func (li *LexicalIndex) indexAll(ctx context.Context, entries []store.ChunkEntry) error {
	const batchSize = 1000
	li.mu.Lock()
	defer li.mu.Unlock()

	batch := li.index.NewBatch()
	for i, e := range entries {
		if i%batchSize == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if err := batch.Index(e.ChunkHash, toLexicalDoc(e)); err != nil {
			return fmt.Errorf("batch index %s: %w", e.ChunkHash, err)
		}
		if batch.Size() >= batchSize {
			if err := li.index.Batch(batch); err != nil {
				return fmt.Errorf("execute batch: %w", err)
			}
			batch = li.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := li.index.Batch(batch); err != nil {
			return fmt.Errorf("execute final batch: %w", err)
		}
	}
	return nil
}

func toLexicalDoc(e store.ChunkEntry) lexicalDoc {
	return lexicalDoc{
		Name:          e.Name,
		Signature:     e.Signature,
		Documentation: e.Documentation,
		Content:       e.Content,
		Kind:          e.Kind,
		Language:      e.Language,
		FilePath:      e.FilePath,
	}
}

// Upsert indexes or reindexes one chunk, for incremental updates after a
// reindex pass.
func (li *LexicalIndex) Upsert(e store.ChunkEntry) error {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.index.Index(e.ChunkHash, toLexicalDoc(e))
}

// Delete removes a chunk from the index.
func (li *LexicalIndex) Delete(chunkHash string) error {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.index.Delete(chunkHash)
}

// lexicalHit is one bleve match with its score and stored fields.
type lexicalHit struct {
	ChunkHash string
	Score     float64
	Doc       lexicalDoc
}

// search runs a query against the index and returns up to limit hits.
func (li *LexicalIndex) search(queryStr string, filter Filter, limit int) ([]lexicalHit, error) {
	li.mu.RLock()
	defer li.mu.RUnlock()

	q := bleve.NewQueryStringQuery(queryStr)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"name", "signature", "documentation", "content", "kind", "language", "file_path"}

	result, err := li.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]lexicalHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		doc := lexicalDoc{
			Name:          fieldString(h.Fields, "name"),
			Signature:     fieldString(h.Fields, "signature"),
			Documentation: fieldString(h.Fields, "documentation"),
			Content:       fieldString(h.Fields, "content"),
			Kind:          fieldString(h.Fields, "kind"),
			Language:      fieldString(h.Fields, "language"),
			FilePath:      fieldString(h.Fields, "file_path"),
		}
		if filter.Language != "" && doc.Language != filter.Language {
			continue
		}
		if filter.DirectoryPrefix != "" && !hasDirPrefix(doc.FilePath, filter.DirectoryPrefix) {
			continue
		}
		hits = append(hits, lexicalHit{ChunkHash: h.ID, Score: h.Score, Doc: doc})
	}
	return hits, nil
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func hasDirPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}

// Close releases the underlying bleve index.
func (li *LexicalIndex) Close() error {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.index.Close()
}
