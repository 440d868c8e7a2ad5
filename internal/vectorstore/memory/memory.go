package memory

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Index is an exact in-memory vector index using brute-force squared
// Euclidean distance. It is not safe for concurrent mutation; callers guard it.
type Index struct {
	dim     int
	vectors [][]float32
}

// Neighbor is a search hit: the insertion position of the stored vector and
// its squared distance to the query.
type Neighbor struct {
	Position int
	Distance float64
}

func NewIndex(dim int) *Index { return &Index{dim: dim} }

// Dim returns the dimension every stored vector has.
func (x *Index) Dim() int { return x.dim }

// Len returns the number of stored vectors.
func (x *Index) Len() int { return len(x.vectors) }

// Vector returns the stored vector at position i.
func (x *Index) Vector(i int) []float32 { return x.vectors[i] }

// With returns a new index holding the current vectors followed by vectors.
// The receiver is left unchanged, so readers may keep using it.
func (x *Index) With(vectors [][]float32) (*Index, error) {
	for i, v := range vectors {
		if len(v) != x.dim {
			return nil, fmt.Errorf("vector %d has dimension %d, index dimension is %d", i, len(v), x.dim)
		}
	}
	next := make([][]float32, 0, len(x.vectors)+len(vectors))
	next = append(next, x.vectors...)
	for _, v := range vectors {
		next = append(next, slices.Clone(v))
	}
	return &Index{dim: x.dim, vectors: next}, nil
}

// Search returns the k nearest stored vectors ordered by ascending distance.
// Equal distances are ordered by insertion position.
func (x *Index) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension is %d", len(query), x.dim)
	}
	if k > len(x.vectors) {
		k = len(x.vectors)
	}
	if k <= 0 {
		return nil, nil
	}
	hits := make([]Neighbor, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = Neighbor{Position: i, Distance: squaredL2(query, v)}
	}
	slices.SortFunc(hits, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return hits[:k], nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

const (
	magic        = "RIVX"
	formatV1     = 1
	headerLength = 16
)

// MarshalBinary stores: magic, version(uint32), dim(uint32), n(uint32),
// then n*dim little-endian float32 values.
func (x *Index) MarshalBinary() ([]byte, error) {
	out := make([]byte, headerLength, headerLength+4*x.dim*len(x.vectors))
	copy(out[0:4], magic)
	binary.LittleEndian.PutUint32(out[4:8], formatV1)
	binary.LittleEndian.PutUint32(out[8:12], uint32(x.dim))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(x.vectors)))
	for _, v := range x.vectors {
		for _, f := range v {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out, nil
}

// UnmarshalBinary restores an index written by MarshalBinary.
func (x *Index) UnmarshalBinary(data []byte) error {
	if len(data) < headerLength || string(data[0:4]) != magic {
		return errors.New("memory index: invalid header")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != formatV1 {
		return fmt.Errorf("memory index: unsupported format version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	n := int(binary.LittleEndian.Uint32(data[12:16]))
	if dim <= 0 {
		return fmt.Errorf("memory index: invalid dimension %d", dim)
	}
	if n > (len(data)-headerLength)/(4*dim) || headerLength+4*dim*n != len(data) {
		return fmt.Errorf("memory index: size %d does not match dim=%d n=%d", len(data), dim, n)
	}
	vectors := make([][]float32, n)
	off := headerLength
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = v
	}
	x.dim = dim
	x.vectors = vectors
	return nil
}
