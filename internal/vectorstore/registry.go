package vectorstore

import (
	"errors"
	"log/slog"
	"os"
	"sync"

	"ragindex/internal/domain"
	"ragindex/internal/vectorstore/memory"
)

// Registry hands out one shared Collection per collection id. Collections are
// loaded lazily from disk and only dropped by Delete.
type Registry struct {
	store     storage
	dimension int
	logger    *slog.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

// slot serializes loading and deleting of a single id so that different
// collections never wait on each other.
type slot struct {
	mu         sync.Mutex
	collection *Collection
}

// NewRegistry creates a registry storing collections under root.
func NewRegistry(root string, dimension int, logger *slog.Logger) (*Registry, error) {
	if dimension <= 0 {
		return nil, domain.Validationf("embedding dimension must be positive, got %d", dimension)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.Persistencef(err, "create store root %s", root)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:     storage{root: root},
		dimension: dimension,
		logger:    logger,
		slots:     make(map[string]*slot),
	}, nil
}

// Dimension returns the vector dimension of every collection.
func (r *Registry) Dimension() int { return r.dimension }

func (r *Registry) slot(id string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		s = &slot{}
		r.slots[id] = s
	}
	return s
}

// Load returns the collection for id, reading it from disk on first use.
// A collection without artifacts is returned empty.
func (r *Registry) Load(id string) (*Collection, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	s := r.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection != nil {
		return s.collection, nil
	}

	snap, found, err := r.store.read(id, r.dimension)
	if err != nil {
		return nil, err
	}
	if !found {
		snap = snapshot{index: memory.NewIndex(r.dimension)}
		r.logger.Debug("collection not found on disk, starting empty", slog.String("collection", id))
	} else {
		r.logger.Info("loaded collection", slog.String("collection", id), slog.Int("chunks", snap.index.Len()))
	}
	s.collection = newCollection(id, r.store, snap, found, r.logger)
	return s.collection, nil
}

// Create makes sure id has persisted, possibly empty, artifacts.
func (r *Registry) Create(id string) error {
	c, err := r.Load(id)
	if err != nil {
		return err
	}
	return c.ensurePersisted()
}

// Stats returns the chunk count of id.
func (r *Registry) Stats(id string) (domain.Stats, error) {
	c, err := r.Load(id)
	if err != nil {
		return domain.Stats{}, err
	}
	return c.Stats(), nil
}

// Delete removes the artifacts of id and evicts it. Deleting a missing
// collection succeeds.
func (r *Registry) Delete(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s := r.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection != nil {
		if err := s.collection.drop(); err != nil {
			return err
		}
		s.collection = nil
	} else if err := r.store.remove(id); err != nil {
		return err
	}
	r.logger.Info("deleted collection", slog.String("collection", id))
	return nil
}

// Exists reports whether id has artifacts on disk.
func (r *Registry) Exists(id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	return r.store.exists(id), nil
}

// List returns the ids of collections with a directory under the root.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.store.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.Persistencef(err, "list collections")
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && ValidateID(e.Name()) == nil && r.store.exists(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
