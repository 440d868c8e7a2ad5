// Package docstore keeps the per-collection record of ingested documents:
// their content hash, processing status and chunk count.
package docstore

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// CurrentSchemaVersion is the version of the database schema.
const CurrentSchemaVersion = 1

// Status is the processing state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Document is one file registered against a collection.
type Document struct {
	ID           string     `json:"id"`
	CollectionID string     `json:"collection_id"`
	Filename     string     `json:"filename"`
	ContentHash  string     `json:"content_hash"`
	SizeBytes    int64      `json:"size_bytes"`
	Status       Status     `json:"status"`
	ChunkCount   int        `json:"chunk_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = errors.New("document not found")

// Store is a sqlite-backed document registry.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates a database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	var exists int
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}
	version := 0
	if exists > 0 {
		err := s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to get schema version: %w", err)
		}
	}
	if version >= CurrentSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := tx.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		CurrentSchemaVersion, s.now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return tx.Commit()
}

// HashContent returns the hex sha256 digest used to detect re-uploads.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Register records a document about to be processed. If the collection
// already holds a document with the same content, that record is returned
// with created set to false and nothing is inserted.
func (s *Store) Register(collectionID, filename string, content []byte) (doc *Document, created bool, err error) {
	hash := HashContent(content)
	existing, err := s.FindByHash(collectionID, hash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	doc = &Document{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		Filename:     filename,
		ContentHash:  hash,
		SizeBytes:    int64(len(content)),
		Status:       StatusPending,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	_, err = s.db.Exec(`
		INSERT INTO documents (id, collection_id, filename, content_hash, size_bytes, status, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		doc.ID, doc.CollectionID, doc.Filename, doc.ContentHash, doc.SizeBytes, string(doc.Status),
		doc.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert document: %w", err)
	}
	return doc, true, nil
}

// FindByHash returns the document of collectionID with the given content
// hash, or nil when there is none.
func (s *Store) FindByHash(collectionID, hash string) (*Document, error) {
	row := s.db.QueryRow(selectDocument+" WHERE collection_id = ? AND content_hash = ?", collectionID, hash)
	doc, err := scanDocument(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

// Get returns a document by id.
func (s *Store) Get(id string) (*Document, error) {
	return scanDocument(s.db.QueryRow(selectDocument+" WHERE id = ?", id))
}

// List returns the documents of a collection, oldest first.
func (s *Store) List(collectionID string) ([]Document, error) {
	rows, err := s.db.Query(selectDocument+" WHERE collection_id = ? ORDER BY created_at, filename", collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// MarkProcessing moves a document into the processing state and clears any
// previous failure.
func (s *Store) MarkProcessing(id string) error {
	return s.update(id, "UPDATE documents SET status = ?, error_message = NULL WHERE id = ?", string(StatusProcessing), id)
}

// MarkCompleted records a successful ingestion.
func (s *Store) MarkCompleted(id string, chunkCount int) error {
	return s.update(id,
		"UPDATE documents SET status = ?, chunk_count = ?, error_message = NULL, processed_at = ? WHERE id = ?",
		string(StatusCompleted), chunkCount, s.now().UTC().Format(time.RFC3339), id)
}

// MarkFailed records a failed ingestion and its error message.
func (s *Store) MarkFailed(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(id,
		"UPDATE documents SET status = ?, error_message = ?, processed_at = ? WHERE id = ?",
		string(StatusFailed), msg, s.now().UTC().Format(time.RFC3339), id)
}

func (s *Store) update(id, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes one document record. Chunks already appended to the
// collection stay; collections only support whole deletion.
func (s *Store) Delete(collectionID, id string) error {
	res, err := s.db.Exec("DELETE FROM documents WHERE id = ? AND collection_id = ?", id, collectionID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteCollection removes every document record of a collection and
// returns how many were removed.
func (s *Store) DeleteCollection(collectionID string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM documents WHERE collection_id = ?", collectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents of %s: %w", collectionID, err)
	}
	return res.RowsAffected()
}

const selectDocument = `
	SELECT id, collection_id, filename, content_hash, size_bytes, status,
		chunk_count, error_message, created_at, processed_at
	FROM documents`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc         Document
		status      string
		errMsg      sql.NullString
		createdAt   string
		processedAt sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.CollectionID, &doc.Filename, &doc.ContentHash, &doc.SizeBytes,
		&status, &doc.ChunkCount, &errMsg, &createdAt, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	doc.Status = Status(status)
	doc.ErrorMessage = errMsg.String
	if doc.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if processedAt.Valid && processedAt.String != "" {
		ts, err := time.Parse(time.RFC3339, processedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse processed_at: %w", err)
		}
		doc.ProcessedAt = &ts
	}
	return &doc, nil
}
