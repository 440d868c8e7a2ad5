package hashing

import (
	"context"
	"math"
	"strings"
	"testing"

	"ragindex/internal/embedding"
)

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder(64)
	a := e.Embed("Vector search over small knowledge bases")
	b := e.Embed("Vector search over small knowledge bases")
	if len(a) != 64 {
		t.Fatalf("dimension = %d, want 64", len(a))
	}
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("squared norm = %v, want 1", norm)
	}
}

func TestEmbedStopwordsOnly(t *testing.T) {
	e := NewEmbedder(16)
	v := e.Embed("the and of")
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestEmbedCaseInsensitive(t *testing.T) {
	e := NewEmbedder(32)
	a := e.Embed("Golang Channels")
	b := e.Embed("golang channels")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding depends on case")
		}
	}
}

func TestEmbedBatch(t *testing.T) {
	e := NewEmbedder(8)
	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"}, embedding.ModeQuery)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	if !e.Fallback() || !strings.HasPrefix(e.Model(), ModelPrefix) {
		t.Errorf("model %q not marked as fallback", e.Model())
	}
}
