package domain

import "context"

// Document is one piece of extracted text destined for a collection.
type Document struct {
	ID       string
	Filename string
	Content  string
}

// Chunk is a bounded part of a document used as the unit of embedding.
type Chunk struct {
	DocumentID string
	Text       string
	Index      int
}

// Metadata is the provenance record stored next to every chunk.
// Extra carries passthrough fields that are not interpreted by the engine.
type Metadata struct {
	Source     string         `json:"source"`
	ChunkIndex int            `json:"chunk_index"`
	Timestamp  string         `json:"timestamp"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// SearchResult is a matching chunk with its raw distance to the query.
// Lower scores are more similar.
type SearchResult struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// Stats summarises a collection.
type Stats struct {
	TotalChunks int    `json:"total_chunks"`
	Model       string `json:"model,omitempty"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts text into fixed-dimension vectors. Documents and queries
// are embedded separately because some providers treat them asymmetrically.
type Embedder interface {
	Model() string
	Dimension() int
	Fallback() bool
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
