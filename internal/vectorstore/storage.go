package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"

	"ragindex/internal/domain"
	"ragindex/internal/vectorstore/memory"
)

// On-disk layout of one collection:
//
//	<root>/<id>/index.vec   binary vector index
//	<root>/<id>/data.json   texts and metadata, in the same order
//	<root>/.locks/<id>.lock cross-process lock
const (
	IndexFile = "index.vec"
	DataFile  = "data.json"
	locksDir  = ".locks"

	dataVersion = 1
)

var collectionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,254}$`)

// ValidateID checks that id can be used as a directory name.
func ValidateID(id string) error {
	if !collectionIDPattern.MatchString(id) {
		return domain.Validationf("invalid collection id %q", id)
	}
	return nil
}

// dataFile is the serialized form of the texts+metadata artifact.
type dataFile struct {
	Version   int               `json:"version"`
	Dimension int               `json:"dimension"`
	Model     string            `json:"model,omitempty"`
	Fallback  bool              `json:"fallback,omitempty"`
	Texts     []string          `json:"texts"`
	Metadata  []domain.Metadata `json:"metadata"`
}

// snapshot is everything persisted for a collection.
type snapshot struct {
	index    *memory.Index
	texts    []string
	metadata []domain.Metadata
	model    string
	fallback bool
}

type storage struct {
	root string
}

func (s storage) dir(id string) string { return filepath.Join(s.root, id) }

func (s storage) lock(id string) (*flock.Flock, error) {
	dir := filepath.Join(s.root, locksDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.Persistencef(err, "create lock dir")
	}
	return flock.New(filepath.Join(dir, id+".lock")), nil
}

// read loads both artifacts. found is false when either one is missing.
func (s storage) read(id string, dim int) (snap snapshot, found bool, err error) {
	fl, err := s.lock(id)
	if err != nil {
		return snapshot{}, false, err
	}
	if err := fl.RLock(); err != nil {
		return snapshot{}, false, domain.Persistencef(err, "lock collection %s", id)
	}
	defer fl.Unlock()

	dir := s.dir(id)
	indexBytes, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if errors.Is(err, os.ErrNotExist) {
		return snapshot{}, false, nil
	}
	if err != nil {
		return snapshot{}, false, domain.Persistencef(err, "read %s index", id)
	}
	dataBytes, err := os.ReadFile(filepath.Join(dir, DataFile))
	if errors.Is(err, os.ErrNotExist) {
		return snapshot{}, false, nil
	}
	if err != nil {
		return snapshot{}, false, domain.Persistencef(err, "read %s data", id)
	}

	idx := memory.NewIndex(dim)
	if err := idx.UnmarshalBinary(indexBytes); err != nil {
		return snapshot{}, false, domain.Persistencef(err, "decode %s index", id)
	}
	var df dataFile
	if err := json.Unmarshal(dataBytes, &df); err != nil {
		return snapshot{}, false, domain.Persistencef(err, "decode %s data", id)
	}
	switch {
	case df.Version != dataVersion:
		return snapshot{}, false, domain.Persistencef(nil, "collection %s: unsupported data version %d", id, df.Version)
	case idx.Dim() != dim || df.Dimension != dim:
		return snapshot{}, false, domain.Persistencef(nil, "collection %s: stored dimension %d/%d, configured %d", id, idx.Dim(), df.Dimension, dim)
	case len(df.Texts) != idx.Len() || len(df.Metadata) != idx.Len():
		return snapshot{}, false, domain.Persistencef(nil, "collection %s: inconsistent artifacts (vectors=%d texts=%d metadata=%d)",
			id, idx.Len(), len(df.Texts), len(df.Metadata))
	}
	return snapshot{
		index:    idx,
		texts:    df.Texts,
		metadata: df.Metadata,
		model:    df.Model,
		fallback: df.Fallback,
	}, true, nil
}

// write replaces both artifacts. Each file is written to a temporary name
// and renamed into place.
func (s storage) write(id string, snap snapshot) error {
	indexBytes, err := snap.index.MarshalBinary()
	if err != nil {
		return domain.Persistencef(err, "encode %s index", id)
	}
	df := dataFile{
		Version:   dataVersion,
		Dimension: snap.index.Dim(),
		Model:     snap.model,
		Fallback:  snap.fallback,
		Texts:     snap.texts,
		Metadata:  snap.metadata,
	}
	if df.Texts == nil {
		df.Texts = []string{}
	}
	if df.Metadata == nil {
		df.Metadata = []domain.Metadata{}
	}
	dataBytes, err := json.Marshal(df)
	if err != nil {
		return domain.Persistencef(err, "encode %s data", id)
	}

	fl, err := s.lock(id)
	if err != nil {
		return err
	}
	if err := fl.Lock(); err != nil {
		return domain.Persistencef(err, "lock collection %s", id)
	}
	defer fl.Unlock()

	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Persistencef(err, "create collection dir %s", dir)
	}
	indexTmp, err := writeTemp(dir, IndexFile, indexBytes)
	if err != nil {
		return domain.Persistencef(err, "write %s index", id)
	}
	dataTmp, err := writeTemp(dir, DataFile, dataBytes)
	if err != nil {
		_ = os.Remove(indexTmp)
		return domain.Persistencef(err, "write %s data", id)
	}
	if err := os.Rename(indexTmp, filepath.Join(dir, IndexFile)); err != nil {
		_ = os.Remove(indexTmp)
		_ = os.Remove(dataTmp)
		return domain.Persistencef(err, "commit %s index", id)
	}
	if err := os.Rename(dataTmp, filepath.Join(dir, DataFile)); err != nil {
		_ = os.Remove(dataTmp)
		return domain.Persistencef(err, "commit %s data", id)
	}
	return nil
}

// exists reports whether both artifacts are present.
func (s storage) exists(id string) bool {
	dir := s.dir(id)
	for _, name := range []string{IndexFile, DataFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// remove deletes the collection directory and its lock file. Missing
// files are fine.
func (s storage) remove(id string) error {
	fl, err := s.lock(id)
	if err != nil {
		return err
	}
	if err := fl.Lock(); err != nil {
		return domain.Persistencef(err, "lock collection %s", id)
	}
	defer fl.Unlock()
	if err := os.RemoveAll(s.dir(id)); err != nil {
		return domain.Persistencef(err, "remove collection %s", id)
	}
	if err := os.Remove(fl.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.Persistencef(err, "remove lock of collection %s", id)
	}
	return nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}
	return tmp, nil
}
