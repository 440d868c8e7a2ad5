package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"ragindex/internal/docstore"
)

// Ingester is the part of the engine the runner drives.
type Ingester interface {
	Ingest(ctx context.Context, collectionID, text, filename string) (int, error)
}

// Outcome describes what happened to one file.
type Outcome struct {
	Path     string
	Document *docstore.Document
	Chunks   int
	// Skipped is set for unsupported files and content already ingested.
	Skipped bool
	Reason  string
	Err     error
}

// Runner ingests files into collections and keeps the document registry in
// step. Docs may be nil, in which case no records are kept and nothing is
// deduplicated.
type Runner struct {
	engine Ingester
	docs   *docstore.Store
	logger *slog.Logger
}

func NewRunner(engine Ingester, docs *docstore.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{engine: engine, docs: docs, logger: logger}
}

// File ingests one file. Ingestion failures are reported in Outcome.Err and
// recorded on the document; the returned error is reserved for registry
// failures that make further work pointless.
func (r *Runner) File(ctx context.Context, collectionID, path string) (Outcome, error) {
	out := Outcome{Path: path}
	name := filepath.Base(path)
	if !Supported(name) {
		out.Skipped, out.Reason = true, "unsupported file type"
		return out, nil
	}
	text, raw, err := ReadText(path)
	if err != nil {
		out.Err = err
		return out, nil
	}

	if r.docs != nil {
		doc, created, err := r.docs.Register(collectionID, name, raw)
		if err != nil {
			return out, err
		}
		out.Document = doc
		if !created && doc.Status != docstore.StatusFailed {
			out.Skipped, out.Reason = true, fmt.Sprintf("already ingested as %s (%s)", doc.Filename, doc.Status)
			r.logger.Info("skipping duplicate document", slog.String("file", path), slog.String("document", doc.ID))
			return out, nil
		}
		if err := r.docs.MarkProcessing(doc.ID); err != nil {
			return out, err
		}
	}

	n, ingestErr := r.engine.Ingest(ctx, collectionID, text, name)
	if r.docs != nil {
		if ingestErr != nil {
			err = r.docs.MarkFailed(out.Document.ID, ingestErr)
		} else {
			err = r.docs.MarkCompleted(out.Document.ID, n)
		}
		if err != nil {
			return out, err
		}
		if out.Document, err = r.docs.Get(out.Document.ID); err != nil {
			return out, err
		}
	}
	out.Chunks, out.Err = n, ingestErr
	return out, nil
}
