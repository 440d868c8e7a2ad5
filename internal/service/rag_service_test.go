package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ragindex/internal/chunker"
	"ragindex/internal/domain"
	"ragindex/internal/embedding"
	"ragindex/internal/embedding/hashing"
	"ragindex/internal/vectorstore"
)

const testDim = 256

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// stubEmbedder is a real-model stand-in that can be made to fail.
type stubEmbedder struct {
	model string
	err   error
	calls int
}

func (s *stubEmbedder) Model() string  { return s.model }
func (s *stubEmbedder) Dimension() int { return testDim }
func (s *stubEmbedder) Fallback() bool { return false }

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, testDim)
		out[i][i%testDim] = 1
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return make([]float32, testDim), nil
}

func newTestEngine(t *testing.T, root string, emb domain.Embedder) *Engine {
	t.Helper()
	ch, err := chunker.NewRecursiveChunker(512, 50)
	if err != nil {
		t.Fatal(err)
	}
	reg, err := vectorstore.NewRegistry(root, testDim, discard())
	if err != nil {
		t.Fatal(err)
	}
	if emb == nil {
		client, err := embedding.NewClient(hashing.NewEmbedder(testDim), embedding.Options{Dimension: testDim, Logger: discard()})
		if err != nil {
			t.Fatal(err)
		}
		emb = client
	}
	eng, err := NewEngine(ch, emb, reg, Options{TopK: 2, Logger: discard(), Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func threeParagraphs() string {
	return strings.Join([]string{
		strings.Repeat("Alpha bravo charlie delta. ", 15),
		strings.Repeat("Echo foxtrot golf hotel. ", 16),
		strings.Repeat("India juliet kilo lima. ", 17),
	}, "\n\n")
}

func TestIngestAndRetrieveScenario(t *testing.T) {
	eng := newTestEngine(t, t.TempDir(), nil)
	ctx := context.Background()
	text := threeParagraphs()

	n, err := eng.Ingest(ctx, "agent-7", text, "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("Ingest() = %d chunks, want 3", n)
	}
	stats, err := eng.Stats("agent-7")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalChunks != 3 {
		t.Fatalf("TotalChunks = %d, want 3", stats.TotalChunks)
	}

	chunks, err := eng.chunker.Chunk(domain.Document{Content: text})
	if err != nil {
		t.Fatal(err)
	}
	got, err := eng.Retrieve(ctx, "agent-7", chunks[1].Text, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(got.Results))
	}
	r := got.Results[0]
	if r.Metadata.ChunkIndex != 1 || r.Metadata.Source != "notes.txt" || r.Score != 0 {
		t.Errorf("result = %+v", r)
	}
	if r.Metadata.Timestamp != "2026-03-01T11:30:00Z" {
		t.Errorf("timestamp = %q, want UTC RFC 3339", r.Metadata.Timestamp)
	}
	if !got.Degraded {
		t.Error("fallback retrieval not flagged as degraded")
	}

	def, err := eng.Retrieve(ctx, "agent-7", "hotel", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(def.Results) != 2 {
		t.Errorf("default top-k returned %d results, want 2", len(def.Results))
	}
}

func TestIngestWithoutChunksLeavesCollectionUntouched(t *testing.T) {
	root := t.TempDir()
	emb := &stubEmbedder{model: "stub"}
	eng := newTestEngine(t, root, emb)
	n, err := eng.Ingest(context.Background(), "a", " \n\t\n ", "blank.txt")
	if err != nil || n != 0 {
		t.Fatalf("Ingest() = %d, %v", n, err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times", emb.calls)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Errorf("collection dir created for empty document: %v", err)
	}
}

func TestIngestEmbedFailure(t *testing.T) {
	cause := domain.Providerf(nil, "quota exceeded")
	eng := newTestEngine(t, t.TempDir(), &stubEmbedder{model: "stub", err: cause})

	_, err := eng.Ingest(context.Background(), "a", "some text", "doc.md")
	var perr *domain.ProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ProcessingError", err)
	}
	if perr.Stage != domain.StageEmbed || perr.Filename != "doc.md" {
		t.Errorf("ProcessingError = %+v", perr)
	}
	if !errors.Is(err, domain.ErrProcessing) || !errors.Is(err, domain.ErrProvider) {
		t.Errorf("error kinds not preserved: %v", err)
	}
	stats, _ := eng.Stats("a")
	if stats.TotalChunks != 0 {
		t.Errorf("TotalChunks = %d after failed ingest", stats.TotalChunks)
	}
}

func TestIngestRejectsInvalidUTF8(t *testing.T) {
	emb := &stubEmbedder{model: "stub"}
	eng := newTestEngine(t, t.TempDir(), emb)
	_, err := eng.Ingest(context.Background(), "a", "broken \xff text", "bad.txt")
	var perr *domain.ProcessingError
	if !errors.As(err, &perr) || perr.Stage != domain.StageChunk {
		t.Fatalf("err = %v, want chunk-stage ProcessingError", err)
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want validation cause", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times", emb.calls)
	}
}

func TestCollectionExists(t *testing.T) {
	eng := newTestEngine(t, t.TempDir(), nil)
	ok, err := eng.CollectionExists("a")
	if err != nil || ok {
		t.Fatalf("CollectionExists before create = %v, %v", ok, err)
	}
	if err := eng.CreateCollection("a"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := eng.CollectionExists("a"); !ok {
		t.Error("CollectionExists after create = false")
	}
	if err := eng.DeleteCollection("a"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := eng.CollectionExists("a"); ok {
		t.Error("CollectionExists after delete = true")
	}
	if _, err := eng.CollectionExists("../a"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("invalid id err = %v", err)
	}
}

func TestIngestInvalidCollection(t *testing.T) {
	eng := newTestEngine(t, t.TempDir(), nil)
	_, err := eng.Ingest(context.Background(), "../escape", "text", "f.txt")
	if !errors.Is(err, domain.ErrProcessing) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestIngestRefusesMixedModels(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	if _, err := newTestEngine(t, root, nil).Ingest(ctx, "a", "fallback text", "one.txt"); err != nil {
		t.Fatal(err)
	}

	other := &stubEmbedder{model: "text-embedding-004"}
	_, err := newTestEngine(t, root, other).Ingest(ctx, "a", "real text", "two.txt")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if other.calls != 0 {
		t.Error("embedder called although the collection would be refused")
	}
}

func TestRetrieveFreshCollection(t *testing.T) {
	emb := &stubEmbedder{model: "stub", err: errors.New("provider down")}
	eng := newTestEngine(t, t.TempDir(), emb)
	if err := eng.CreateCollection("fresh"); err != nil {
		t.Fatal(err)
	}
	got, err := eng.Retrieve(context.Background(), "fresh", "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Results == nil || len(got.Results) != 0 {
		t.Errorf("Results = %#v, want empty slice", got.Results)
	}
	got, err = eng.Retrieve(context.Background(), "never-created", "anything", 3)
	if err != nil || len(got.Results) != 0 {
		t.Errorf("missing collection: %v, %v", got, err)
	}
}

func TestRetrieveRejectsForeignModel(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	if _, err := newTestEngine(t, root, &stubEmbedder{model: "model-a"}).Ingest(ctx, "a", "text", "f.txt"); err != nil {
		t.Fatal(err)
	}
	_, err := newTestEngine(t, root, &stubEmbedder{model: "model-b"}).Retrieve(ctx, "a", "q", 1)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestDeleteCollectionTwice(t *testing.T) {
	root := t.TempDir()
	eng := newTestEngine(t, root, nil)
	if _, err := eng.Ingest(context.Background(), "a", threeParagraphs(), "f.txt"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := eng.DeleteCollection("a"); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Errorf("artifacts left behind: %v", err)
	}
	stats, _ := eng.Stats("a")
	if stats.TotalChunks != 0 {
		t.Errorf("TotalChunks = %d after delete", stats.TotalChunks)
	}
}

func TestConcurrentIngestAcrossCollections(t *testing.T) {
	eng := newTestEngine(t, t.TempDir(), nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("agent-%d", i%3)
			if _, err := eng.Ingest(ctx, id, threeParagraphs(), fmt.Sprintf("doc-%d.txt", i)); err != nil {
				t.Error(err)
			}
			if _, err := eng.Retrieve(ctx, id, "golf", 3); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < 3; i++ {
		stats, err := eng.Stats(fmt.Sprintf("agent-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if stats.TotalChunks != 6 {
			t.Errorf("agent-%d has %d chunks, want 6", i, stats.TotalChunks)
		}
	}
}

func TestNewEngineDimensionMismatch(t *testing.T) {
	ch, _ := chunker.NewRecursiveChunker(100, 10)
	reg, _ := vectorstore.NewRegistry(t.TempDir(), 8, discard())
	_, err := NewEngine(ch, &stubEmbedder{model: "stub"}, reg, Options{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}
