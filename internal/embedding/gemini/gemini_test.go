package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragindex/internal/embedding"
)

func TestEmbedBatchTaskTypes(t *testing.T) {
	tests := []struct {
		mode embedding.Mode
		want string
	}{
		{embedding.ModeDocument, "RETRIEVAL_DOCUMENT"},
		{embedding.ModeQuery, "RETRIEVAL_QUERY"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var got batchRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/models/text-embedding-004:batchEmbedContents" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if r.Header.Get("x-goog-api-key") != "key" {
					t.Errorf("missing api key header")
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				_, _ = w.Write([]byte(`{"embeddings":[{"values":[1,0,0]},{"values":[0,1,0]}]}`))
			}))
			defer srv.Close()

			c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Model: "models/text-embedding-004", Dimension: 3})
			if err != nil {
				t.Fatal(err)
			}
			vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"}, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if len(vecs) != 2 || vecs[1][1] != 1 {
				t.Errorf("unexpected vectors %v", vecs)
			}
			if len(got.Requests) != 2 {
				t.Fatalf("sent %d requests", len(got.Requests))
			}
			r := got.Requests[0]
			if r.TaskType != tt.want || r.Model != "models/text-embedding-004" || r.OutputDimensionality != 3 || r.Content.Parts[0].Text != "a" {
				t.Errorf("unexpected request %+v", r)
			}
		})
	}
}

func TestEmbedBatchRejectsWrongCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[1]}]}`))
	}))
	defer srv.Close()
	c, _ := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	if _, err := c.EmbedBatch(context.Background(), []string{"a", "b"}, embedding.ModeDocument); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbedBatchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c, _ := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	if _, err := c.EmbedBatch(context.Background(), []string{"a"}, embedding.ModeQuery); err == nil {
		t.Fatal("expected error")
	}
}
