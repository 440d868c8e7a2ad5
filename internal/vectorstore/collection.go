package vectorstore

import (
	"log/slog"
	"slices"
	"sync"

	"ragindex/internal/domain"
	"ragindex/internal/vectorstore/memory"
)

// Provenance records which embedding model produced a collection's vectors.
type Provenance struct {
	Model    string
	Fallback bool
}

// Collection is one agent's vector index together with the chunk texts and
// metadata stored at the same positions.
//
// Appends are serialized by writeMu and build a new state that is persisted
// before it becomes visible, so searches never wait on disk writes and never
// observe a partial append.
type Collection struct {
	id      string
	store   storage
	logger  *slog.Logger
	writeMu sync.Mutex

	mu        sync.RWMutex
	index     *memory.Index
	texts     []string
	metadata  []domain.Metadata
	model     string
	fallback  bool
	persisted bool
	deleted   bool
}

func newCollection(id string, store storage, snap snapshot, persisted bool, logger *slog.Logger) *Collection {
	return &Collection{
		id:        id,
		store:     store,
		logger:    logger.With(slog.String("collection", id)),
		index:     snap.index,
		texts:     snap.texts,
		metadata:  snap.metadata,
		model:     snap.model,
		fallback:  snap.fallback,
		persisted: persisted,
	}
}

// ID returns the collection identifier.
func (c *Collection) ID() string { return c.id }

// Append adds vectors with their texts and metadata. All three must have the
// same length. An empty append writes nothing.
func (c *Collection) Append(vectors [][]float32, texts []string, metas []domain.Metadata) error {
	return c.AppendWithProvenance(Provenance{}, vectors, texts, metas)
}

// AppendWithProvenance is Append that also records, or checks, the embedding
// model behind the vectors. A collection never mixes vectors from different
// models; the first non-empty append decides.
func (c *Collection) AppendWithProvenance(p Provenance, vectors [][]float32, texts []string, metas []domain.Metadata) error {
	if len(vectors) != len(texts) || len(texts) != len(metas) {
		return domain.Validationf("append length mismatch: vectors=%d texts=%d metadata=%d", len(vectors), len(texts), len(metas))
	}
	if len(vectors) == 0 {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	cur := c.state()
	deleted := c.deleted
	c.mu.RUnlock()

	if deleted {
		return domain.Persistencef(nil, "collection %s was deleted", c.id)
	}
	if p.Model != "" && cur.model != "" && (p.Model != cur.model || p.Fallback != cur.fallback) {
		return domain.Validationf("collection %s holds %q embeddings, refusing vectors from %q", c.id, cur.model, p.Model)
	}

	nextIndex, err := cur.index.With(vectors)
	if err != nil {
		return domain.Validationf("collection %s: %v", c.id, err)
	}
	next := snapshot{
		index:    nextIndex,
		texts:    append(slices.Clip(cur.texts), texts...),
		metadata: append(slices.Clip(cur.metadata), metas...),
		model:    cur.model,
		fallback: cur.fallback,
	}
	if next.model == "" && p.Model != "" {
		next.model, next.fallback = p.Model, p.Fallback
	}
	if err := c.store.write(c.id, next); err != nil {
		return err
	}

	c.mu.Lock()
	c.index, c.texts, c.metadata = next.index, next.texts, next.metadata
	c.model, c.fallback = next.model, next.fallback
	c.persisted = true
	c.mu.Unlock()

	c.logger.Info("appended chunks", slog.Int("added", len(vectors)), slog.Int("total", next.index.Len()))
	return nil
}

// Search returns the k entries nearest to query, closest first. k is clamped
// to the collection size; an empty collection yields no results.
func (c *Collection) Search(query []float32, k int) ([]domain.SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.index.Len() == 0 {
		c.logger.Warn("index is empty, no documents to search")
		return []domain.SearchResult{}, nil
	}
	hits, err := c.index.Search(query, k)
	if err != nil {
		return nil, domain.Validationf("collection %s: %v", c.id, err)
	}
	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.SearchResult{
			Text:     c.texts[h.Position],
			Metadata: c.metadata[h.Position],
			Score:    h.Distance,
		}
	}
	c.logger.Debug("searched collection", slog.Int("vectors", c.index.Len()), slog.Int("results", len(results)))
	return results, nil
}

// Stats reports the number of stored chunks and the embedding provenance.
func (c *Collection) Stats() domain.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.Stats{TotalChunks: c.index.Len(), Model: c.model, Fallback: c.fallback}
}

// Provenance returns the recorded embedding model, empty for a collection
// that has never been appended to.
func (c *Collection) Provenance() Provenance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Provenance{Model: c.model, Fallback: c.fallback}
}

// Snapshot returns copies of the three parallel sequences.
func (c *Collection) Snapshot() (vectors [][]float32, texts []string, metadata []domain.Metadata) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vectors = make([][]float32, c.index.Len())
	for i := range vectors {
		vectors[i] = slices.Clone(c.index.Vector(i))
	}
	return vectors, slices.Clone(c.texts), slices.Clone(c.metadata)
}

// ensurePersisted writes empty artifacts for a collection that has none yet.
func (c *Collection) ensurePersisted() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	done := c.persisted || c.deleted
	cur := c.state()
	c.mu.RUnlock()
	if done {
		return nil
	}
	if err := c.store.write(c.id, cur); err != nil {
		return err
	}
	c.mu.Lock()
	c.persisted = true
	c.mu.Unlock()
	return nil
}

// drop removes the artifacts and clears the in-memory state. Later appends
// through this handle fail.
func (c *Collection) drop() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.store.remove(c.id); err != nil {
		return err
	}
	c.mu.Lock()
	c.index = memory.NewIndex(c.index.Dim())
	c.texts, c.metadata = nil, nil
	c.model, c.fallback = "", false
	c.persisted = false
	c.deleted = true
	c.mu.Unlock()
	return nil
}

// state must be called with mu held.
func (c *Collection) state() snapshot {
	return snapshot{index: c.index, texts: c.texts, metadata: c.metadata, model: c.model, fallback: c.fallback}
}
