package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ragindex/internal/domain"
	"ragindex/internal/vectorstore"
)

// DefaultTopK is used when neither the caller nor the options set k.
const DefaultTopK = 5

// Retrieval is the ranked result of a query against one collection.
// Degraded is set when fallback embeddings were involved on either side, in
// which case the ranking carries no semantic meaning.
type Retrieval struct {
	Results  []domain.SearchResult `json:"results"`
	Degraded bool                  `json:"degraded,omitempty"`
}

// Options tunes an Engine.
type Options struct {
	TopK   int
	Logger *slog.Logger
	// Now stamps chunk metadata. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs the ingestion and retrieval pipelines over a registry of
// per-agent collections.
type Engine struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	registry *vectorstore.Registry
	topK     int
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(chunker domain.Chunker, embedder domain.Embedder, registry *vectorstore.Registry, opts Options) (*Engine, error) {
	if chunker == nil || embedder == nil || registry == nil {
		return nil, errors.New("engine needs a chunker, an embedder and a registry")
	}
	if embedder.Dimension() != registry.Dimension() {
		return nil, domain.Validationf("embedder dimension %d does not match store dimension %d", embedder.Dimension(), registry.Dimension())
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		chunker:  chunker,
		embedder: embedder,
		registry: registry,
		topK:     opts.TopK,
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// Ingest chunks text, embeds the chunks and appends them to the collection.
// It returns the number of chunks written. A text that yields no chunks
// leaves the collection untouched. Failures are reported as
// *domain.ProcessingError.
func (e *Engine) Ingest(ctx context.Context, collectionID, text, filename string) (int, error) {
	log := e.logger.With(slog.String("collection", collectionID), slog.String("source", filename))

	chunks, err := e.chunker.Chunk(domain.Document{ID: filename, Filename: filename, Content: text})
	if err != nil {
		return 0, e.fail(log, domain.StageChunk, filename, err)
	}
	if len(chunks) == 0 {
		log.Info("document produced no chunks")
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	coll, err := e.registry.Load(collectionID)
	if err != nil {
		return 0, e.fail(log, domain.StagePersist, filename, err)
	}
	prov := vectorstore.Provenance{Model: e.embedder.Model(), Fallback: e.embedder.Fallback()}
	if cur := coll.Provenance(); cur.Model != "" && cur != prov {
		err := domain.Validationf("collection %s holds %q embeddings, current embedder is %q", collectionID, cur.Model, prov.Model)
		return 0, e.fail(log, domain.StageEmbed, filename, err)
	}

	start := time.Now()
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, e.fail(log, domain.StageEmbed, filename, err)
	}
	log.Debug("embedded chunks", slog.Int("chunks", len(chunks)), slog.Duration("took", time.Since(start)))

	ts := e.now().UTC().Format(time.RFC3339)
	metas := make([]domain.Metadata, len(chunks))
	for i, ch := range chunks {
		metas[i] = domain.Metadata{Source: filename, ChunkIndex: ch.Index, Timestamp: ts}
	}
	if err := coll.AppendWithProvenance(prov, vectors, texts, metas); err != nil {
		return 0, e.fail(log, domain.StagePersist, filename, err)
	}
	log.Info("ingested document", slog.Int("chunks", len(chunks)))
	return len(chunks), nil
}

func (e *Engine) fail(log *slog.Logger, stage, filename string, err error) error {
	log.Error("ingestion failed", slog.String("stage", stage), slog.Any("error", err))
	return &domain.ProcessingError{Stage: stage, Filename: filename, Err: err}
}

// Retrieve returns the k chunks nearest to query. k <= 0 selects the
// configured default. An empty or missing collection yields no results.
func (e *Engine) Retrieve(ctx context.Context, collectionID, query string, k int) (Retrieval, error) {
	if k <= 0 {
		k = e.topK
	}
	coll, err := e.registry.Load(collectionID)
	if err != nil {
		return Retrieval{}, err
	}
	stats := coll.Stats()
	if stats.TotalChunks == 0 {
		e.logger.Info("collection is empty", slog.String("collection", collectionID))
		return Retrieval{Results: []domain.SearchResult{}}, nil
	}
	if !stats.Fallback && !e.embedder.Fallback() && stats.Model != "" && stats.Model != e.embedder.Model() {
		return Retrieval{}, domain.Validationf("collection %s was embedded with %q, query embedder is %q", collectionID, stats.Model, e.embedder.Model())
	}

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return Retrieval{}, err
	}
	results, err := coll.Search(vec, k)
	if err != nil {
		return Retrieval{}, err
	}

	degraded := stats.Fallback || e.embedder.Fallback()
	if degraded {
		e.logger.Warn("retrieval used fallback embeddings, ranking is not semantic",
			slog.String("collection", collectionID),
			slog.Bool("collection_fallback", stats.Fallback),
			slog.Bool("query_fallback", e.embedder.Fallback()))
	}
	e.logger.Info("retrieved context", slog.String("collection", collectionID), slog.Int("results", len(results)))
	return Retrieval{Results: results, Degraded: degraded}, nil
}

// Stats reports the size and embedding provenance of a collection.
func (e *Engine) Stats(collectionID string) (domain.Stats, error) {
	return e.registry.Stats(collectionID)
}

// CollectionExists reports whether a collection has persisted artifacts.
func (e *Engine) CollectionExists(collectionID string) (bool, error) {
	return e.registry.Exists(collectionID)
}

// CreateCollection ensures an empty persisted collection exists. Existing
// collections are left as they are.
func (e *Engine) CreateCollection(collectionID string) error {
	return e.registry.Create(collectionID)
}

// DeleteCollection removes a collection and its artifacts. Deleting a
// missing collection succeeds.
func (e *Engine) DeleteCollection(collectionID string) error {
	return e.registry.Delete(collectionID)
}

// Collections lists the ids of persisted collections.
func (e *Engine) Collections() ([]string, error) {
	return e.registry.List()
}
